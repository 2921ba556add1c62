package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"license-signing-system/internal/config"
	"license-signing-system/internal/model"
)

// sheetColumns 镜像表的列，A 列为许可证 key
var sheetColumns = []string{
	"key", "customer", "product", "seats", "hwid", "issued_at",
	"expires_at", "algorithm", "is_revoked", "created_at",
}

const lastColumn = "J"

// SheetSyncService 把归档镜像到 Google Sheets。nil 接收者上的方法都是空操作。
type SheetSyncService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	log           *zap.Logger
}

var _ Mirror = (*SheetSyncService)(nil)

// NewSheetSyncService 未启用时返回 nil, nil
func NewSheetSyncService(ctx context.Context, cfg config.SheetsConfig, log *zap.Logger) (*SheetSyncService, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	// 读取凭证文件
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("读取凭证文件失败: %w", err)
	}

	// 使用服务账号授权
	creds, err := google.CredentialsFromJSON(ctx, b, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("无法加载凭证: %w", err)
	}

	return newSheetSyncService(ctx, cfg, log, option.WithCredentials(creds))
}

func newSheetSyncService(ctx context.Context, cfg config.SheetsConfig, log *zap.Logger, opts ...option.ClientOption) (*SheetSyncService, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SheetSyncService{
		service:       srv,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		log:           log,
	}, nil
}

// SyncLicense 按 key 更新已有行，不存在时追加
func (s *SheetSyncService) SyncLicense(ctx context.Context, l *model.License) error {
	if s == nil {
		return nil
	}

	if err := s.ensureSheet(ctx); err != nil {
		return err
	}

	// 先检查Sheet中是否已存在该Key
	keyResp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A2:A").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("查询Sheet数据失败: %w", err)
	}

	rowIndex := 0
	for i, row := range keyResp.Values {
		if len(row) > 0 && fmt.Sprint(row[0]) == l.Key {
			rowIndex = i + 2 // A2 开始
			break
		}
	}

	values := [][]interface{}{licenseRow(l)}
	if rowIndex > 0 {
		rangeData := fmt.Sprintf("%s!A%d:%s%d", s.sheetName, rowIndex, lastColumn, rowIndex)
		_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{Values: values}).
			ValueInputOption("RAW").Context(ctx).Do()
	} else {
		_, err = s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetName+"!A2:"+lastColumn, &sheets.ValueRange{Values: values}).
			ValueInputOption("RAW").Context(ctx).Do()
	}
	if err != nil {
		return fmt.Errorf("同步到Google Sheet失败: %w", err)
	}

	s.log.Info("已同步许可证到Google Sheet", zap.String("key", l.Key), zap.Bool("updated", rowIndex > 0))
	return nil
}

// BatchSyncLicenses 用归档内容整体覆盖镜像表（含表头）
func (s *SheetSyncService) BatchSyncLicenses(ctx context.Context, licenses []model.License) error {
	if s == nil {
		return nil
	}

	if err := s.ensureSheet(ctx); err != nil {
		return err
	}

	header := make([]interface{}, len(sheetColumns))
	for i, c := range sheetColumns {
		header[i] = c
	}
	values := [][]interface{}{header}
	for i := range licenses {
		values = append(values, licenseRow(&licenses[i]))
	}

	fullRange := s.sheetName + "!A:" + lastColumn
	if _, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, fullRange, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("清空工作表失败: %w", err)
	}
	if _, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.sheetName+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("批量同步到Google Sheet失败: %w", err)
	}

	s.log.Info("已批量同步许可证到Google Sheet", zap.Int("count", len(licenses)))
	return nil
}

// ensureSheet 检查工作表是否存在
func (s *SheetSyncService) ensureSheet(ctx context.Context) error {
	spreadsheet, err := s.service.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("获取Spreadsheet信息失败: %w", err)
	}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == s.sheetName {
			return nil
		}
	}
	return fmt.Errorf("工作表'%s'不存在", s.sheetName)
}

func licenseRow(l *model.License) []interface{} {
	expires := ""
	if l.ExpiresAt != nil {
		expires = l.ExpiresAt.Format("2006-01-02")
	}
	return []interface{}{
		l.Key,
		l.Customer,
		l.Product,
		strconv.Itoa(l.Seats),
		l.HWID,
		l.IssuedAt.Format("2006-01-02"),
		expires,
		l.Algorithm,
		strconv.FormatBool(l.Revoked),
		l.CreatedAt.UTC().Format(time.RFC3339),
	}
}
