package model

import "strings"

// Participant 방 참가자 (연결 ID 기준)
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// IsAnonymous 이름이 비어있거나 "guest"(대소문자 무시)이면 익명
func IsAnonymous(name string) bool {
	trimmed := strings.TrimSpace(name)
	return trimmed == "" || strings.EqualFold(trimmed, DefaultParticipantName)
}

// VisibleParticipants 익명 참가자를 제외한 목록 (UI 노출용)
func VisibleParticipants(list []Participant) []Participant {
	visible := make([]Participant, 0, len(list))
	for _, p := range list {
		if IsAnonymous(p.Name) {
			continue
		}
		visible = append(visible, p)
	}
	return visible
}

// TrimDisplayName 공백 제거 후 최대 길이로 자름
func TrimDisplayName(name string) string {
	runes := []rune(strings.TrimSpace(name))
	if len(runes) > MaxDisplayNameLength {
		runes = runes[:MaxDisplayNameLength]
	}
	return strings.TrimSpace(string(runes))
}
