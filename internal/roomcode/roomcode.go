// Package roomcode 방 코드 검증/정규화/생성.
// 방 코드는 서버, 클라이언트, 레지스트리가 공유하는 계약이다: 4~10자의 대문자 A-Z와 숫자.
package roomcode

import (
	"errors"
	"math/rand"
	"regexp"
	"strings"
)

// ErrInvalidRoomID 방 코드 형식 오류
var ErrInvalidRoomID = errors.New("invalid room id")

var pattern = regexp.MustCompile(`^[A-Z0-9]{4,10}$`)

// 혼동되는 문자(0, O, 1, I)는 생성 시 제외
const alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// GeneratedLength 새로 만드는 방 코드 길이
const GeneratedLength = 6

// Valid 방 코드 형식 검증 (정규화하지 않음)
func Valid(id string) bool {
	return pattern.MatchString(id)
}

// Normalize 공백 제거 + 대문자 변환
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Parse 정규화 후 검증
func Parse(raw string) (string, error) {
	id := Normalize(raw)
	if !Valid(id) {
		return "", ErrInvalidRoomID
	}
	return id, nil
}

// Generate 새 방 코드 생성
func Generate() string {
	var b strings.Builder
	b.Grow(GeneratedLength)
	for i := 0; i < GeneratedLength; i++ {
		b.WriteByte(alphabet[rand.Intn(len(alphabet))])
	}
	return b.String()
}
