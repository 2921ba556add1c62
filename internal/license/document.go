package license

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Document 签名后的许可证文档。签名只覆盖 Claims，不包括 public_key 与 hwid。
type Document struct {
	Claims    Claims    `json:"license"`
	Algorithm Algorithm `json:"algorithm"`
	Signature string    `json:"signature"`
	PublicKey string    `json:"public_key,omitempty"`
	HWID      string    `json:"hwid,omitempty"`
}

// wireDocument 用指针区分缺失的 license 对象
type wireDocument struct {
	License   *Claims   `json:"license"`
	Algorithm Algorithm `json:"algorithm"`
	Signature string    `json:"signature"`
	PublicKey string    `json:"public_key,omitempty"`
	HWID      string    `json:"hwid,omitempty"`
}

// Marshal 缩进的 JSON，适合写入许可证文件
func (d *Document) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal license document: %w", err)
	}
	return append(data, '\n'), nil
}

// FileName 默认的许可证文件名 <customer>_<product>.license.json
func (d *Document) FileName() string {
	name := d.Claims.Customer + "_" + d.Claims.Product + ".license.json"
	name = strings.ReplaceAll(name, " ", "_")
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

// ParseDocument 解码文档。未知字段、缺失的 license 对象、无效日期和未知版本都返回 MalformedDocumentError。
func ParseDocument(data []byte) (*Document, error) {
	if err := checkUniqueKeys(json.NewDecoder(bytes.NewReader(data))); err != nil {
		return nil, &MalformedDocumentError{Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w wireDocument
	if err := dec.Decode(&w); err != nil {
		return nil, &MalformedDocumentError{Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &MalformedDocumentError{Err: errors.New("trailing data after document")}
	}
	if w.License == nil {
		return nil, &MalformedDocumentError{Err: errors.New("license object is missing")}
	}
	if w.License.Version != CurrentVersion {
		return nil, &MalformedDocumentError{Err: fmt.Errorf("unsupported claims version %d", w.License.Version)}
	}
	if w.License.IssuedAt.IsZero() {
		return nil, &MalformedDocumentError{Err: errors.New("issued_at is missing")}
	}

	return &Document{
		Claims:    *w.License,
		Algorithm: w.Algorithm,
		Signature: w.Signature,
		PublicKey: w.PublicKey,
		HWID:      w.HWID,
	}, nil
}

// checkUniqueKeys 拒绝任意层级对象中的重复键。encoding/json 匹配字段时不区分大小写，这里也一样。
func checkUniqueKeys(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}

	switch delim {
	case '{':
		seen := make(map[string]struct{})
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			key, _ := tok.(string)
			folded := strings.ToLower(key)
			if _, dup := seen[folded]; dup {
				return fmt.Errorf("duplicate key %q", key)
			}
			seen[folded] = struct{}{}
			if err := checkUniqueKeys(dec); err != nil {
				return err
			}
		}
	case '[':
		for dec.More() {
			if err := checkUniqueKeys(dec); err != nil {
				return err
			}
		}
	}

	// 结束符
	_, err = dec.Token()
	return err
}
