package extract

import (
	"bytes"
	"encoding/base64"
	"html"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// EmailBody decodes an RFC 822 message and returns the text best suited for
// field extraction: the first text/plain part, falling back to tag-stripped
// text/html, falling back to the raw payload. Malformed messages never error
// out of the scan path; the raw bytes are returned as a last resort so the
// extractor still gets a chance.
func EmailBody(raw []byte) string {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	plain, htm := walkPart(msg.Body, mediaType, params, msg.Header.Get("Content-Transfer-Encoding"))
	if plain != "" {
		return plain
	}
	if htm != "" {
		return htmlToText(htm)
	}
	return string(raw)
}

// walkPart descends into multipart bodies collecting the first text/plain
// and text/html payloads. multipart/alternative lists the plain variant
// first by convention, but both are collected in case the order is reversed.
func walkPart(body io.Reader, mediaType string, params map[string]string, transferEnc string) (plain, htm string) {
	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		boundary := params["boundary"]
		if boundary == "" {
			return "", ""
		}
		mr := multipart.NewReader(body, boundary)
		for {
			p, err := mr.NextPart()
			if err != nil {
				return plain, htm
			}
			childType, childParams, err := mime.ParseMediaType(p.Header.Get("Content-Type"))
			if err != nil {
				childType = "text/plain"
			}
			cp, ch := walkPart(p, childType, childParams, p.Header.Get("Content-Transfer-Encoding"))
			if plain == "" {
				plain = cp
			}
			if htm == "" {
				htm = ch
			}
			if plain != "" {
				return plain, htm
			}
		}

	case strings.HasPrefix(mediaType, "text/"):
		data, err := io.ReadAll(decodeTransfer(body, transferEnc))
		if err != nil {
			return "", ""
		}
		text := decodeCharset(data, params["charset"])
		if strings.HasPrefix(mediaType, "text/html") {
			return "", text
		}
		return text, ""
	}
	return "", ""
}

// decodeTransfer unwraps the content-transfer-encoding layer.
func decodeTransfer(r io.Reader, enc string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, &base64CleanReader{r: r})
	default:
		return r
	}
}

// base64CleanReader strips CR/LF so wrapped base64 bodies decode.
type base64CleanReader struct {
	r io.Reader
}

func (c *base64CleanReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	j := 0
	for i := 0; i < n; i++ {
		if p[i] == '\r' || p[i] == '\n' {
			continue
		}
		p[j] = p[i]
		j++
	}
	return j, err
}

// decodeCharset converts legacy single-byte encodings to UTF-8. Unknown
// charsets pass through unchanged, which is correct for UTF-8 and ASCII.
func decodeCharset(data []byte, charset string) string {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "iso-8859-1", "latin1", "latin-1":
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err == nil {
			return string(out)
		}
	case "windows-1252", "cp1252":
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err == nil {
			return string(out)
		}
	}
	return string(data)
}

var (
	reBreak = regexp.MustCompile(`(?i)<\s*(?:br|/p|/div|/tr|/li)\s*/?\s*>`)
	reTag   = regexp.MustCompile(`<[^>]*>`)
)

// htmlToText is a line-preserving tag stripper for the text/html fallback.
// Block-level closers become newlines so label/value pairs stay on their own
// lines for the extractor.
func htmlToText(s string) string {
	s = reBreak.ReplaceAllString(s, "\n")
	s = reTag.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}
