package extractor

import (
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode/utf32"
)

// chardet reports a few names that the WHATWG label table does not know.
var charsetAliases = map[string]string{
	"gb-18030":    "gb18030",
	"iso-2022-kr": "",
	"ibm420_rtl":  "",
	"ibm420_ltr":  "",
	"ibm424_rtl":  "",
	"ibm424_ltr":  "",
}

// DetectCharset guesses the encoding of sample. It returns "" when nothing
// could be detected.
func DetectCharset(sample []byte) string {
	if len(sample) == 0 {
		return ""
	}
	res, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil || res == nil {
		return ""
	}
	return res.Charset
}

// lookupEncoding maps a detected charset name to a decoder. A nil result
// means the text is treated as UTF-8.
func lookupEncoding(name string) encoding.Encoding {
	label := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := charsetAliases[label]; ok {
		label = alias
	}
	switch label {
	case "", "utf-8", "utf8", "ascii", "us-ascii":
		return nil
	case "utf-32be":
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)
	case "utf-32le":
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM)
	}
	enc, _ := charset.Lookup(label)
	return enc
}

// Decode converts data from the named charset to UTF-8. Bytes that cannot be
// decoded are dropped rather than substituted.
func Decode(data []byte, charsetName string) string {
	var text string
	if enc := lookupEncoding(charsetName); enc != nil {
		out, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			text = string(data)
		} else {
			text = string(out)
		}
	} else {
		text = string(data)
	}

	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\uFFFD", "")
	return strings.TrimPrefix(text, "\uFEFF")
}
