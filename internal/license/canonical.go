package license

import (
	"bytes"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

const canonicalHeader = "license-claims"

// absentMarker 表示可选字段缺失，与空字符串 "0:" 区分
const absentMarker = "-"

// Encode 返回声明的规范字节序列，作为签名输入。
// 字段顺序固定，文本字段先做 NFC 规范化再加长度前缀，因此不同的声明不会编码成相同的字节。
func Encode(c Claims) []byte {
	var buf bytes.Buffer
	buf.WriteString(canonicalHeader)
	buf.WriteByte('\n')

	writeInt(&buf, "version", c.Version)
	writeText(&buf, "key", c.Key)
	writeText(&buf, "customer", c.Customer)
	writeText(&buf, "product", c.Product)
	writeInt(&buf, "seats", c.Seats)
	writeField(&buf, "issued_at", c.IssuedAt.String())

	if c.ExpiresAt != nil {
		writeField(&buf, "expires_at", c.ExpiresAt.String())
	} else {
		writeField(&buf, "expires_at", absentMarker)
	}

	if c.Notes != nil {
		writeText(&buf, "notes", *c.Notes)
	} else {
		writeField(&buf, "notes", absentMarker)
	}

	return buf.Bytes()
}

func writeField(buf *bytes.Buffer, name, value string) {
	buf.WriteString(name)
	buf.WriteByte(':')
	buf.WriteString(value)
	buf.WriteByte('\n')
}

func writeInt(buf *bytes.Buffer, name string, v int) {
	writeField(buf, name, strconv.Itoa(v))
}

func writeText(buf *bytes.Buffer, name, value string) {
	value = norm.NFC.String(value)
	writeField(buf, name, strconv.Itoa(len(value))+":"+value)
}
