// Package jsonx 模型输出的宽松 JSON 解析：标准解析失败后依次尝试 json-repair 和 Hjson
package jsonx

import (
	"encoding/json"
	"errors"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// Strategy 最终生效的解析策略
type Strategy string

const (
	StrategyStrict Strategy = "strict"
	StrategyRepair Strategy = "repair"
	StrategyHjson  Strategy = "hjson"
)

// ErrUnparseable 所有策略都失败
var ErrUnparseable = errors.New("所有 JSON 解析策略均失败")

// Normalize 把宽松 JSON 转成标准 JSON 字节
func Normalize(input string) ([]byte, Strategy, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, "", ErrUnparseable
	}

	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed), StrategyStrict, nil
	}

	if repaired, err := jsonrepair.RepairJSON(trimmed); err == nil && json.Valid([]byte(repaired)) && !isEmptyRepair(repaired) {
		return []byte(repaired), StrategyRepair, nil
	}

	var value interface{}
	if err := hjson.Unmarshal([]byte(trimmed), &value); err == nil {
		if out, err := json.Marshal(value); err == nil {
			return out, StrategyHjson, nil
		}
	}

	return nil, "", ErrUnparseable
}

// SmartParse 依次尝试各策略并解码到 dst
func SmartParse(input string, dst interface{}) (Strategy, error) {
	data, strategy, err := Normalize(input)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return "", err
	}
	return strategy, nil
}

// json-repair 对完全无法识别的输入会返回空串或空字符串字面量
func isEmptyRepair(s string) bool {
	switch strings.TrimSpace(s) {
	case "", `""`, "null":
		return true
	}
	return false
}
