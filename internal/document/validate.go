package document

import (
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/tokmz/advisor/internal/model"
)

// rule 单类文档的校验规则
type rule struct {
	extensions []string
	mimeTypes  []string
}

var rules = map[string]rule{
	model.DocumentResume: {
		extensions: []string{".pdf", ".doc", ".docx"},
		mimeTypes: []string{
			"application/pdf",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			// 旧版 .doc 有时只能识别为 OLE 容器
			"application/x-ole-storage",
		},
	},
	model.DocumentCertificate: {
		extensions: []string{".pdf", ".jpg", ".jpeg", ".png"},
		mimeTypes:  []string{"application/pdf", "image/jpeg", "image/png"},
	},
}

// sniffed 校验通过的文件
type sniffed struct {
	header      *multipart.FileHeader
	filename    string
	extension   string
	contentType string
}

// validateFile 按大小、扩展名与内容嗅探出的 MIME 类型校验，返回全部不通过的原因
func validateFile(fh *multipart.FileHeader, docType string, maxSize int64) (*sniffed, []string) {
	r := rules[docType]
	name := cleanFilename(fh.Filename)
	ext := strings.ToLower(path.Ext(name))

	var problems []string
	if fh.Size > maxSize {
		problems = append(problems, fmt.Sprintf("file size %d exceeds %d bytes", fh.Size, maxSize))
	}
	if !slices.Contains(r.extensions, ext) {
		problems = append(problems, fmt.Sprintf("invalid file extension %q for %s", ext, docType))
	}

	contentType, err := sniff(fh)
	if err != nil {
		problems = append(problems, "unreadable file: "+err.Error())
	} else if !allowedMIME(contentType, r.mimeTypes) {
		problems = append(problems, fmt.Sprintf("invalid file type %s for %s", contentType.String(), docType))
	}
	if len(problems) > 0 {
		return nil, problems
	}

	return &sniffed{
		header:      fh,
		filename:    name,
		extension:   ext,
		contentType: contentType.String(),
	}, nil
}

func sniff(fh *multipart.FileHeader) (*mimetype.MIME, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return mimetype.DetectReader(io.LimitReader(f, 3072))
}

// allowedMIME 检测结果或其父类型命中白名单即可
func allowedMIME(m *mimetype.MIME, allowed []string) bool {
	for ; m != nil; m = m.Parent() {
		for _, a := range allowed {
			if m.Is(a) {
				return true
			}
		}
	}
	return false
}

// cleanFilename 去掉客户端路径，只保留文件名
func cleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return "file"
	}
	return name
}

// safeEmail 邮箱中的 @ 与 . 替换为 _
func safeEmail(email string) string {
	return strings.NewReplacer("@", "_", ".", "_").Replace(email)
}
