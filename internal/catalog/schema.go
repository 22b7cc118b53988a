package catalog

import (
	"math"

	"capability-gateway/internal/domain"
)

// Property はパラメータスキーマの1プロパティを表す。
// ディスカバリー応答のJSONスキーマとしてそのままシリアライズされる。
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Default     any       `json:"default,omitempty"`
	Minimum     *float64  `json:"minimum,omitempty"`
	Items       *Property `json:"items,omitempty"`
	// AdditionalProperties はobject型プロパティの値の型を制約する（path_params等のマッピング用）。
	AdditionalProperties *Property `json:"additionalProperties,omitempty"`
}

// Schema はツール引数のJSONパラメータスキーマを表す。常にobject型。
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

func minimum(v float64) *float64 {
	return &v
}

// Validate は引数マップをスキーマに対して検証する。
// 必須フィールドの欠落・型不一致・enum違反はフィールド名を含むValidationErrorになる。
func (s Schema) Validate(args map[string]any) *domain.GatewayError {
	for _, name := range s.Required {
		if _, ok := args[name]; !ok {
			return domain.NewError(domain.ErrValidation, "required argument %q is missing", name)
		}
	}
	for name, value := range args {
		prop, ok := s.Properties[name]
		if !ok {
			return domain.NewError(domain.ErrValidation, "unexpected argument %q", name)
		}
		if err := prop.validate(name, value); err != nil {
			return err
		}
	}
	return nil
}

func (p Property) validate(name string, value any) *domain.GatewayError {
	if value == nil {
		return domain.NewError(domain.ErrValidation, "argument %q must not be null", name)
	}
	switch p.Type {
	case "string":
		s, ok := value.(string)
		if !ok {
			return domain.NewError(domain.ErrValidation, "argument %q must be a string", name)
		}
		if len(p.Enum) > 0 {
			for _, allowed := range p.Enum {
				if s == allowed {
					return nil
				}
			}
			return domain.NewError(domain.ErrValidation, "argument %q must be one of %v", name, p.Enum)
		}
	case "integer":
		// JSONデコード後の数値はfloat64になるため、整数値かどうかを確認する
		f, ok := asNumber(value)
		if !ok || f != math.Trunc(f) {
			return domain.NewError(domain.ErrValidation, "argument %q must be an integer", name)
		}
		if p.Minimum != nil && f < *p.Minimum {
			return domain.NewError(domain.ErrValidation, "argument %q must be >= %v", name, *p.Minimum)
		}
	case "number":
		f, ok := asNumber(value)
		if !ok {
			return domain.NewError(domain.ErrValidation, "argument %q must be a number", name)
		}
		if p.Minimum != nil && f < *p.Minimum {
			return domain.NewError(domain.ErrValidation, "argument %q must be >= %v", name, *p.Minimum)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return domain.NewError(domain.ErrValidation, "argument %q must be a boolean", name)
		}
	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			return domain.NewError(domain.ErrValidation, "argument %q must be an object", name)
		}
		if p.AdditionalProperties != nil {
			for k, v := range obj {
				if err := p.AdditionalProperties.validate(name+"."+k, v); err != nil {
					return err
				}
			}
		}
	case "array":
		arr, ok := value.([]any)
		if !ok {
			return domain.NewError(domain.ErrValidation, "argument %q must be an array", name)
		}
		if p.Items != nil {
			for _, v := range arr {
				if err := p.Items.validate(name, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func asNumber(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
