package pointer

// Create : 값 복사본의 포인터 (이벤트 payload 처럼 nil 이 "없음" 인 필드용)
func Create[T any](source T) *T {
	return &source
}
