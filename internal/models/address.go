package models

import "strings"

// Address 结构化地址信息（逆地理编码结果，以 JSONB 存储）
type Address struct {
	FormattedAddress string `json:"formatted_address,omitempty"`
	Country          string `json:"country,omitempty"`
	Province         string `json:"province,omitempty"`
	City             string `json:"city,omitempty"`
	District         string `json:"district,omitempty"`
	Township         string `json:"township,omitempty"`
	Street           string `json:"street,omitempty"`
	StreetNumber     string `json:"street_number,omitempty"`
	Provider         string `json:"provider,omitempty"`
}

// Short 简短地址：区 + 街道 + 门牌号，都为空时退回完整地址
func (a *Address) Short() string {
	if a == nil {
		return ""
	}
	s := strings.TrimSpace(a.District + a.Street + a.StreetNumber)
	if s == "" {
		return a.FormattedAddress
	}
	return s
}
