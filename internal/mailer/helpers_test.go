package mailer

import (
	"fmt"
	"mime"
)

type mimeDecoder struct{ mime.WordDecoder }

func (d *mimeDecoder) decode(s string) (string, error) {
	return d.DecodeHeader(s)
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
