package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"naskahsync/internal/document/model"

	"github.com/oklog/ulid/v2"
)

const snippetLength = 100

// newID returns a sortable identifier for chat messages and subscriptions.
func newID() string {
	return ulid.Make().String()
}

// getSnippetFromContent renders a short plain-text preview. Text documents may
// hold a plain string or a Quill delta; spreadsheets are flattened row by row.
func getSnippetFromContent(docType model.DocType, content json.RawMessage) string {
	var sb strings.Builder
	switch docType {
	case model.TypeSpreadsheet:
		var rows [][]any
		if err := json.Unmarshal(content, &rows); err != nil {
			return ""
		}
		for _, row := range rows {
			for _, cell := range row {
				if cell == nil {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				fmt.Fprint(&sb, cell)
			}
			if sb.Len() > snippetLength {
				break
			}
		}
	default:
		var text string
		if err := json.Unmarshal(content, &text); err == nil {
			sb.WriteString(text)
			break
		}
		type QuillOp struct {
			Insert interface{} `json:"insert"`
		}
		type QuillDelta struct {
			Ops []QuillOp `json:"ops"`
		}
		var delta QuillDelta
		if err := json.Unmarshal(content, &delta); err != nil {
			return ""
		}
		for _, op := range delta.Ops {
			if str, ok := op.Insert.(string); ok {
				sb.WriteString(str)
			}
			if sb.Len() > snippetLength {
				break
			}
		}
	}

	res := strings.TrimSpace(sb.String())
	res = strings.ReplaceAll(res, "\n", " ")
	if utf8.RuneCountInString(res) > snippetLength {
		return string([]rune(res)[:snippetLength]) + "..."
	}
	return res
}
