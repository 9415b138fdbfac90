package crawl

import (
	"mime"
	"net/http"
	"strings"
)

// contentTypes maps lower-case extensions to media types. It takes
// precedence over the system MIME table, which varies between hosts.
var contentTypes = map[string]string{
	// Documents
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"odt":  "application/vnd.oasis.opendocument.text",
	"rtf":  "application/rtf",

	// Spreadsheets and slides
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ods":  "application/vnd.oasis.opendocument.spreadsheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"csv":  "text/csv",

	// Text
	"txt":  "text/plain",
	"log":  "text/plain",
	"md":   "text/markdown",
	"html": "text/html",
	"htm":  "text/html",
	"xml":  "application/xml",
	"json": "application/json",
	"yaml": "application/x-yaml",
	"yml":  "application/x-yaml",

	// Images
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"tif":  "image/tiff",
	"tiff": "image/tiff",

	// Archives
	"zip": "application/zip",
	"gz":  "application/gzip",
}

// sniffLen is the prefix inspected by http.DetectContentType.
const sniffLen = 512

// DetectContentType returns the media type of a file from its lower-case
// extension, then from its leading bytes. Unknown types yield "".
func DetectContentType(extension string, content []byte) string {
	if ct, ok := contentTypes[extension]; ok {
		return ct
	}
	if extension != "" {
		if ct := mediaType(mime.TypeByExtension("." + extension)); ct != "" {
			return ct
		}
	}
	if len(content) == 0 {
		return ""
	}

	head := content
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	ct := mediaType(http.DetectContentType(head))
	if ct == "application/octet-stream" {
		return ""
	}
	return ct
}

// mediaType drops parameters such as charset.
func mediaType(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])
	}
	return mt
}
