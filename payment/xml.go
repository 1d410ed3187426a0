package payment

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// encodeXML 生成 <xml><k><![CDATA[v]]></k>...</xml>，键按字典序输出
func encodeXML(params map[string]string) []byte {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var buf bytes.Buffer
	buf.WriteString("<xml>")
	for _, k := range keys {
		buf.WriteString("<" + k + "><![CDATA[")
		// CDATA 内不能出现 ]]>
		buf.WriteString(strings.ReplaceAll(params[k], "]]>", "]]]]><![CDATA[>"))
		buf.WriteString("]]></" + k + ">")
	}
	buf.WriteString("</xml>")
	return buf.Bytes()
}

// decodeXML 解析一层扁平 XML，嵌套元素只保留第一层的文本
func decodeXML(body []byte) (map[string]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	result := make(map[string]string)

	var (
		depth   int
		current string
		text    strings.Builder
		rooted  bool
	)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				rooted = true
			}
			if depth == 2 {
				current = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 2 {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 2 {
				result[current] = text.String()
			}
			depth--
		}
	}
	if !rooted {
		return nil, fmt.Errorf("decode xml: empty document")
	}
	return result, nil
}
