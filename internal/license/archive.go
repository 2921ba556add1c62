package license

import "time"

// ArchiveRecord 签发成功后交给归档的数据。归档失败不影响已生成的文档。
type ArchiveRecord struct {
	LicenseKey string
	Customer   string
	Product    string
	Seats      int
	HWID       string
	IssuedAt   Date
	ExpiresAt  *Date
	Notes      *string
	Algorithm  Algorithm
	Signature  string
	Document   []byte
	CreatedAt  time.Time
}

// NewArchiveRecord 由文档生成归档记录，document 为写入文件的原始字节
func NewArchiveRecord(doc *Document, document []byte, createdAt time.Time) ArchiveRecord {
	return ArchiveRecord{
		LicenseKey: doc.Claims.Key,
		Customer:   doc.Claims.Customer,
		Product:    doc.Claims.Product,
		Seats:      doc.Claims.Seats,
		HWID:       doc.HWID,
		IssuedAt:   doc.Claims.IssuedAt,
		ExpiresAt:  doc.Claims.ExpiresAt,
		Notes:      doc.Claims.Notes,
		Algorithm:  doc.Algorithm,
		Signature:  doc.Signature,
		Document:   document,
		CreatedAt:  createdAt,
	}
}
