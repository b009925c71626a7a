package rule_test

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/rule"
)

// hashParams 用于测试 ValidateStruct，字段规则与指纹配置一致.
type hashParams struct {
	HashSize   int    `rule:"min=4,max=64"`
	CanvasSize int    `rule:"min=32"`
	Kind       string `rule:"oneof=phash ahash dhash"`
}

// TestEngine 测试 Engine 函数返回非 nil 实例.
func TestEngine(t *testing.T) {
	engine := rule.Engine()
	if engine == nil {
		t.Error("Engine() returned nil")
	}
}

// TestValidateStruct 测试 ValidateStruct 对有效和无效结构体的验证.
func TestValidateStruct(t *testing.T) {
	valid := hashParams{HashSize: 16, CanvasSize: 256, Kind: "phash"}

	err := rule.ValidateStruct(valid)
	if err != nil {
		t.Errorf("Expected no error for valid struct, got %v", err)
	}

	// 无效结构体：hash size 超出范围
	invalidSize := hashParams{HashSize: 128, CanvasSize: 256, Kind: "phash"}

	err = rule.ValidateStruct(invalidSize)
	if err == nil {
		t.Error("Expected error for hash size out of range, got nil")
	}

	// 无效结构体：未知哈希类型
	invalidKind := hashParams{HashSize: 16, CanvasSize: 256, Kind: "md5"}

	err = rule.ValidateStruct(invalidKind)
	if err == nil {
		t.Error("Expected error for unknown hash kind, got nil")
	}
}

// TestValidateVar 测试 ValidateVar 对变量的验证.
func TestValidateVar(t *testing.T) {
	// 有效 url
	err := rule.ValidateVar("https://api.openai.com/v1", "required,url")
	if err != nil {
		t.Errorf("Expected no error for valid url, got %v", err)
	}

	// 无效 url
	err = rule.ValidateVar("not a url", "required,url")
	if err == nil {
		t.Error("Expected error for invalid url, got nil")
	}

	// 有效数字
	err = rule.ValidateVar(22050, "gte=8000")
	if err != nil {
		t.Errorf("Expected no error for valid number, got %v", err)
	}

	// 无效数字
	err = rule.ValidateVar(4000, "gte=8000")
	if err == nil {
		t.Error("Expected error for invalid number, got nil")
	}
}

// TestRegisterValidation 测试注册自定义验证.
func TestRegisterValidation(t *testing.T) {
	// 注册自定义验证：十六进制指纹字符串长度必须为 4 的倍数
	err := rule.RegisterValidation("hexlen4", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}

		return len(str)%4 == 0
	})
	if err != nil {
		t.Fatalf("Failed to register validation: %v", err)
	}

	err = rule.ValidateVar("abcd1234", "hexlen4")
	if err != nil {
		t.Errorf("Expected no error for 8-char hex, got %v", err)
	}

	err = rule.ValidateVar("abcd123", "hexlen4")
	if err == nil {
		t.Error("Expected error for 7-char hex, got nil")
	}
}

// TestRegisterAlias 测试注册别名.
func TestRegisterAlias(t *testing.T) {
	rule.RegisterAlias("asset_key", "required,min=3")

	err := rule.ValidateVar("img/cat.png", "asset_key")
	if err != nil {
		t.Errorf("Expected no error for valid key with alias, got %v", err)
	}

	err = rule.ValidateVar("ab", "asset_key")
	if err == nil {
		t.Error("Expected error for short key with alias, got nil")
	}
}
