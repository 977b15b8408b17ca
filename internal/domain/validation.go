package domain

import (
	"errors"
	"regexp"
	"strings"
)

// 校验相关的错误定义
var (
	ErrEmailRequired   = errors.New("email is required")
	ErrEmailDomain     = errors.New("email domain not allowed")
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrDateRequired    = errors.New("date is required")
	ErrInvalidDate     = errors.New("invalid date format")
	ErrDateOutsideWeek = errors.New("date outside visible week")
	ErrSpotRequired    = errors.New("spot is required")
	ErrInvalidSpot     = errors.New("invalid parking spot")
)

// 邮箱基础格式：本地部分与域名均不允许空白字符与多余的 @
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// 日期格式 YYYY-MM-DD
var dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// EmailValidator 按公司域名后缀校验并归一化邮箱。
type EmailValidator struct {
	allowedDomain string // 形如 "@northhighland.com"，始终小写
}

// NewEmailValidator 创建邮箱验证器。
func NewEmailValidator(allowedDomain string) *EmailValidator {
	return &EmailValidator{allowedDomain: strings.ToLower(allowedDomain)}
}

// Normalize 校验邮箱并返回归一化形式（去首尾空白、全小写）。
//
// 域名后缀不匹配时返回 ErrEmailDomain，基础格式不合法时返回 ErrInvalidEmail。
func (v *EmailValidator) Normalize(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", ErrEmailRequired
	}
	if !strings.HasSuffix(normalized, v.allowedDomain) {
		return "", ErrEmailDomain
	}
	if !emailRegex.MatchString(normalized) {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

// ValidateDate 校验日期字符串是否为 YYYY-MM-DD 格式。
func ValidateDate(date string) error {
	if date == "" {
		return ErrDateRequired
	}
	if !dateRegex.MatchString(date) {
		return ErrInvalidDate
	}
	return nil
}

// SpotSet 配置的固定车位集合。
type SpotSet struct {
	ordered []string
	members map[string]struct{}
}

// NewSpotSet 创建车位集合，保留配置顺序并去重。
func NewSpotSet(spots []string) *SpotSet {
	set := &SpotSet{
		ordered: make([]string, 0, len(spots)),
		members: make(map[string]struct{}, len(spots)),
	}
	for _, s := range spots {
		if _, ok := set.members[s]; ok {
			continue
		}
		set.ordered = append(set.ordered, s)
		set.members[s] = struct{}{}
	}
	return set
}

// Contains 判断车位是否在配置集合内。
func (s *SpotSet) Contains(spot string) bool {
	_, ok := s.members[spot]
	return ok
}

// Validate 校验车位字段。
func (s *SpotSet) Validate(spot string) error {
	if spot == "" {
		return ErrSpotRequired
	}
	if !s.Contains(spot) {
		return ErrInvalidSpot
	}
	return nil
}

// List 返回车位列表的副本，保持配置顺序。
func (s *SpotSet) List() []string {
	out := make([]string, len(s.ordered))
	copy(out, s.ordered)
	return out
}
