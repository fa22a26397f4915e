package domain

import (
	"regexp"
	"strings"
)

// IMDbID 是影片的唯一主键（形如 tt0372784），同时也是详情缓存的 key。
//
// 约束：远端偶尔返回大写前缀，统一规范化为小写 "tt"。
type IMDbID string

var imdbIDRE = regexp.MustCompile(`^tt[0-9]{7,10}$`)

// ParseIMDbID 校验并规范化 IMDb ID。
func ParseIMDbID(s string) (IMDbID, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !imdbIDRE.MatchString(s) {
		return "", false
	}
	return IMDbID(s), true
}

func (id IMDbID) String() string { return string(id) }
