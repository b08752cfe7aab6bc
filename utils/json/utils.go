// Package json : 프로젝트 공용 json-iterator 설정
package json

import (
	stdjson "encoding/json"

	jsoniter "github.com/json-iterator/go"
)

// API : encoding/json 과 같은 동작
var API = jsoniter.ConfigCompatibleWithStandardLibrary

// Strict : 숫자는 json.Number 로, key 는 대소문자 구분.
// Binance 메시지는 "t"/"T", "e"/"E" 처럼 대소문자만 다른 key 가 같이 온다
var Strict = jsoniter.Config{UseNumber: true, CaseSensitive: true}.Froze()

type RawMessage = jsoniter.RawMessage

// Number : Strict 로 any 에 디코딩한 숫자 타입
type Number = stdjson.Number

func Marshal(v any) ([]byte, error) {
	return API.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return API.Unmarshal(data, v)
}

func Valid(data []byte) bool {
	return API.Valid(data)
}

// DeserializeMessageBody : data -> T
func DeserializeMessageBody[T any](message []byte) (T, error) {
	var result T
	if err := API.Unmarshal(message, &result); err != nil {
		return *new(T), err
	}
	return result, nil
}
