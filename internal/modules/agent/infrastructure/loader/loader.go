package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"LinkMind/pkg/xerr"

	"github.com/cloudwego/eino/schema"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

type loadFunc func(path, source string, headerFlatten bool) ([]*schema.Document, error)

// loaderTable 扩展名到解析函数的映射
// 旧式二进制格式 .doc/.xls（OLE复合文档）无解析库支持，不在表内
var loaderTable = map[string]loadFunc{
	".txt":  loadPlainText,
	".md":   loadPlainText,
	".csv":  loadCSV,
	".xlsx": loadExcel,
	".pdf":  loadPDF,
	".docx": loadDocx,
}

// SupportedExt 返回扩展名是否可解析
func SupportedExt(name string) bool {
	_, ok := loaderTable[strings.ToLower(filepath.Ext(name))]
	return ok
}

// LoadFile 按扩展名解析本地文件为文档列表，source 写入每个文档的元数据
// headerFlatten 控制 csv/xlsx 是否按表头平铺每一行，关闭时按原始文本处理
// 不支持的类型或解析失败返回 ParseError
func LoadFile(path, source string, headerFlatten bool) ([]*schema.Document, error) {
	ext := strings.ToLower(filepath.Ext(source))
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(path))
	}
	fn, ok := loaderTable[ext]
	if !ok {
		return nil, xerr.ParseError(fmt.Sprintf("不支持的文件类型: %s", source))
	}
	docs, err := fn(path, source, headerFlatten)
	if err != nil {
		return nil, xerr.ParseError(fmt.Sprintf("解析文件失败: %s: %v", source, err))
	}
	return docs, nil
}

func newDoc(content, source string, extra map[string]any) *schema.Document {
	meta := map[string]any{"source": source}
	for k, v := range extra {
		meta[k] = v
	}
	return &schema.Document{Content: content, MetaData: meta}
}

func loadPlainText(path, source string, _ bool) ([]*schema.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []*schema.Document{newDoc(string(data), source, nil)}, nil
}

// loadCSV 表头平铺开启时首行为表头，之后每行平铺为一个文档："表头: 值; 表头: 值"
// 关闭时整个文件按纯文本处理，交由后续切分
func loadCSV(path, source string, headerFlatten bool) ([]*schema.Document, error) {
	if !headerFlatten {
		return loadPlainText(path, source, false)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	var docs []*schema.Document
	rowNum := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		content := flattenRow(header, row)
		if content != "" {
			docs = append(docs, newDoc(content, source, map[string]any{"row": rowNum}))
		}
		rowNum++
	}
	return docs, nil
}

// loadExcel 遍历所有 sheet。表头平铺开启时按 CSV 相同的行平铺规则生成文档，
// 关闭时每个 sheet 的单元格按行拼为一个纯文本文档
func loadExcel(path, source string, headerFlatten bool) ([]*schema.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []*schema.Document
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, err
		}

		if !headerFlatten {
			var lines []string
			for _, row := range rows {
				if line := strings.TrimSpace(strings.Join(row, ", ")); line != "" {
					lines = append(lines, line)
				}
			}
			if len(lines) > 0 {
				docs = append(docs, newDoc(strings.Join(lines, "\n"), source, map[string]any{"sheet": sheet}))
			}
			continue
		}

		if len(rows) < 2 {
			continue
		}
		header := rows[0]
		for i, row := range rows[1:] {
			content := flattenRow(header, row)
			if content != "" {
				docs = append(docs, newDoc(content, source, map[string]any{"sheet": sheet, "row": i + 1}))
			}
		}
	}
	return docs, nil
}

// loadPDF 每页一个文档，页码写入元数据
func loadPDF(path, source string, _ bool) ([]*schema.Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []*schema.Document
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("读取第 %d 页失败: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, newDoc(text, source, map[string]any{"page": i}))
	}
	return docs, nil
}

var (
	docxParaRe = regexp.MustCompile(`</w:p>`)
	docxTagRe  = regexp.MustCompile(`<[^>]+>`)
)

// loadDocx 从 word 文档 XML 中抽取正文，段落边界转换为换行
func loadDocx(path, source string, _ bool) ([]*schema.Document, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	content = docxParaRe.ReplaceAllString(content, "\n")
	content = docxTagRe.ReplaceAllString(content, "")
	content = strings.ReplaceAll(content, "&amp;", "&")
	content = strings.ReplaceAll(content, "&lt;", "<")
	content = strings.ReplaceAll(content, "&gt;", ">")
	return []*schema.Document{newDoc(content, source, nil)}, nil
}

// flattenRow 将一行数据平铺为 "表头: 值; 表头: 值"，空单元格跳过
func flattenRow(header, row []string) string {
	var parts []string
	for i, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		name := fmt.Sprintf("col%d", i+1)
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			name = strings.TrimSpace(header[i])
		}
		parts = append(parts, name+": "+cell)
	}
	return strings.Join(parts, "; ")
}
