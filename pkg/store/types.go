package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is a custom GORM type for []string stored as JSON.
// A nil list is stored as SQL NULL and serialized as JSON null.
type StringList []string

// Scan implements the sql.Scanner interface for StringList.
func (s *StringList) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	bytes, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("unsupported type for StringList: %w", err)
	}
	return json.Unmarshal(bytes, s)
}

// Value implements the driver.Valuer interface for StringList.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// JSONMap is a custom GORM type for map[string]any stored as JSON.
type JSONMap map[string]any

// Scan implements the sql.Scanner interface for JSONMap.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("unsupported type for JSONMap: %w", err)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONMap.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// ExtraDownload is one entry of a crate's extra-download adjustments.
type ExtraDownload struct {
	Date      string `json:"date"`
	Downloads int    `json:"downloads"`
}

// ExtraDownloadList is a custom GORM type for []ExtraDownload stored as JSON.
type ExtraDownloadList []ExtraDownload

// Scan implements the sql.Scanner interface for ExtraDownloadList.
func (l *ExtraDownloadList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("unsupported type for ExtraDownloadList: %w", err)
	}
	return json.Unmarshal(bytes, l)
}

// Value implements the driver.Valuer interface for ExtraDownloadList.
func (l ExtraDownloadList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// LanguageCount holds the per-language line counts of a published version.
type LanguageCount struct {
	CodeLines    int `json:"code_lines"`
	CommentLines int `json:"comment_lines"`
	Files        int `json:"files"`
}

// Linecounts is the structured line-count metadata attached to a version.
type Linecounts struct {
	Languages         map[string]LanguageCount `json:"languages"`
	TotalCodeLines    int                      `json:"total_code_lines"`
	TotalCommentLines int                      `json:"total_comment_lines"`
}

// Scan implements the sql.Scanner interface for Linecounts.
func (l *Linecounts) Scan(value any) error {
	if value == nil {
		return nil
	}
	bytes, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("unsupported type for Linecounts: %w", err)
	}
	return json.Unmarshal(bytes, l)
}

// Value implements the driver.Valuer interface for Linecounts.
func (l Linecounts) Value() (driver.Value, error) {
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("%T", value)
	}
}
