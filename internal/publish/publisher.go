// Package publish 通过 MQTT 发布实体（Home Assistant 自动发现）并接收实体命令
package publish

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"go.uber.org/zap"

	"github.com/langchou/lxgazer/internal/entity"
	"github.com/langchou/lxgazer/internal/service"
)

const (
	keepAlive      = 30
	connectTimeout = 10 * time.Second
	publishTimeout = 10 * time.Second
	commandTimeout = 30 * time.Second
	qos            = 1
)

var ErrNotStarted = errors.New("mqtt publisher not started")

// Config MQTT 连接配置
type Config struct {
	Broker          string
	Username        string
	Password        string
	ClientID        string
	DiscoveryPrefix string
	TopicPrefix     string
}

// Publisher 实体发布器
type Publisher struct {
	cfg        Config
	topics     Topics
	logger     *zap.Logger
	registries map[string]*entity.Registry

	cm *autopaho.ConnectionManager

	mu     sync.Mutex
	photos map[string]time.Time // 每辆车最后发布的照片时间
}

// New 创建发布器，Start 之前不建立连接
func New(cfg Config, registries []*entity.Registry, logger *zap.Logger) *Publisher {
	byVIN := make(map[string]*entity.Registry, len(registries))
	for _, r := range registries {
		byVIN[r.VIN()] = r
	}
	return &Publisher{
		cfg:        cfg,
		topics:     Topics{DiscoveryPrefix: cfg.DiscoveryPrefix, Prefix: cfg.TopicPrefix},
		logger:     logger.With(zap.String("component", "mqtt")),
		registries: byVIN,
		photos:     make(map[string]time.Time),
	}
}

// Start 连接 broker，连接（或重连）成功后发布发现配置和当前状态
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     keepAlive,
		CleanStartOnInitialConnection: true,
		ReconnectBackoff:              autopaho.NewConstantBackoff(3 * time.Second),
		ConnectTimeout:                connectTimeout,
		ConnectUsername:               p.cfg.Username,
		ConnectPassword:               []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.topics.Status(),
			Payload: []byte(PayloadOffline),
			QoS:     qos,
			Retain:  true,
		},
		OnConnectionUp: p.onConnectionUp,
		OnConnectError: func(err error) {
			p.logger.Warn("MQTT connection failed, retrying", zap.Error(err))
		},
		ClientConfig: paho.ClientConfig{
			ClientID: p.cfg.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				p.router,
			},
			OnClientError: func(err error) {
				p.logger.Error("MQTT client error", zap.Error(err))
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				p.logger.Warn("MQTT server disconnected", zap.Uint8("reason", d.ReasonCode))
			},
		},
	}

	p.logger.Info("Starting MQTT publisher", zap.String("broker", p.cfg.Broker), zap.String("client_id", p.cfg.ClientID))

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm
	return nil
}

// Run 把车辆刷新通知转为状态发布，直到通道关闭或 ctx 取消
func (p *Publisher) Run(ctx context.Context, updates <-chan service.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if r, ok := p.registries[u.VIN]; ok {
				p.publishState(ctx, r)
			}
		}
	}
}

// Stop 发布下线状态并断开连接
func (p *Publisher) Stop(ctx context.Context) {
	if p.cm == nil {
		return
	}
	_ = p.publish(ctx, Message{Topic: p.topics.Status(), Payload: []byte(PayloadOffline), Retain: true})
	if err := p.cm.Disconnect(ctx); err != nil {
		p.logger.Warn("MQTT disconnect failed", zap.Error(err))
		return
	}
	p.logger.Info("MQTT publisher stopped")
}

func (p *Publisher) onConnectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	p.logger.Info("MQTT connection established")
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if _, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: p.topics.CommandFilter(), QoS: qos, NoLocal: true},
		},
	}); err != nil {
		p.logger.Error("Failed to subscribe command topics", zap.Error(err))
	}

	go p.announce()
}

// announce 重新发布桥接状态、发现配置和全部车辆状态
func (p *Publisher) announce() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout*time.Duration(len(p.registries)+1))
	defer cancel()

	if err := p.publish(ctx, Message{Topic: p.topics.Status(), Payload: []byte(PayloadOnline), Retain: true}); err != nil {
		p.logger.Warn("Failed to publish bridge status", zap.Error(err))
	}
	for _, r := range p.registries {
		msgs, err := p.topics.DiscoveryMessages(r)
		if err != nil {
			p.logger.Error("Failed to build discovery", zap.String("vin", r.VIN()), zap.Error(err))
			continue
		}
		p.publishAll(ctx, r.VIN(), msgs)
		p.publishState(ctx, r)
	}
}

func (p *Publisher) publishState(ctx context.Context, r *entity.Registry) {
	msgs, err := p.topics.StateMessages(r)
	if err != nil {
		p.logger.Error("Failed to build state", zap.String("vin", r.VIN()), zap.Error(err))
		return
	}
	p.publishAll(ctx, r.VIN(), msgs)
	p.publishPhoto(ctx, r)
}

// publishPhoto 照片时间变化时发布拼图
func (p *Publisher) publishPhoto(ctx context.Context, r *entity.Registry) {
	v := r.Vehicle()
	s := v.Store()
	takenAt := s.PhotoTime()
	urls := s.PhotoURLs()
	if len(urls) == 0 {
		return
	}

	p.mu.Lock()
	last, seen := p.photos[v.VIN()]
	p.mu.Unlock()
	if seen && last.Equal(takenAt) {
		return
	}

	img, err := v.Camera().JPEG(ctx, urls, takenAt, 0, 0)
	if err != nil {
		p.logger.Warn("Failed to merge photos", zap.String("vin", v.VIN()), zap.Error(err))
		return
	}
	if err := p.publish(ctx, Message{Topic: p.topics.Image(v.VIN(), "photos"), Payload: img, Retain: true}); err != nil {
		p.logger.Warn("Failed to publish photo", zap.String("vin", v.VIN()), zap.Error(err))
		return
	}

	p.mu.Lock()
	p.photos[v.VIN()] = takenAt
	p.mu.Unlock()
}

func (p *Publisher) publishAll(ctx context.Context, vin string, msgs []Message) {
	for _, m := range msgs {
		if err := p.publish(ctx, m); err != nil {
			p.logger.Warn("MQTT publish failed", zap.String("vin", vin), zap.String("topic", m.Topic), zap.Error(err))
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, m Message) error {
	if p.cm == nil {
		return ErrNotStarted
	}
	_, err := p.cm.Publish(ctx, &paho.Publish{
		Topic:   m.Topic,
		QoS:     qos,
		Retain:  m.Retain,
		Payload: m.Payload,
	})
	return err
}

// router 收到命令后在独立 goroutine 中执行，避免阻塞读循环
func (p *Publisher) router(pr paho.PublishReceived) (bool, error) {
	topic, payload := pr.Packet.Topic, pr.Packet.Payload
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if _, err := p.HandleCommand(ctx, topic, payload); err != nil {
			p.logger.Warn("MQTT command rejected", zap.String("topic", topic), zap.Error(err))
		}
	}()
	return true, nil
}

// HandleCommand 把命令主题分发到对应实体，执行后重新发布该车已缓存的状态
// 不会主动拉取车端数据，新状态由下一个快速周期带回
func (p *Publisher) HandleCommand(ctx context.Context, topic string, payload []byte) (bool, error) {
	vin, key, action, ok := p.topics.ParseCommand(topic)
	if !ok {
		return false, fmt.Errorf("topic %s: %w", topic, entity.ErrUnsupportedAction)
	}
	r, ok := p.registries[vin]
	if !ok {
		return false, fmt.Errorf("vin %s: %w", vin, service.ErrVehicleNotFound)
	}

	name, value := ResolveCommand(action, payload)
	success, err := r.Do(ctx, key, name, value)
	if err != nil {
		return false, err
	}
	p.logger.Info("MQTT command executed",
		zap.String("vin", vin),
		zap.String("entity", key),
		zap.String("action", name),
		zap.Bool("success", success))

	if p.cm != nil {
		p.publishState(ctx, r)
	}
	return success, nil
}
