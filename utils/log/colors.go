package log

import (
	"bytes"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var escapedESC = []byte("\\u001b")

// colorEncoder wraps the console encoder so that colour escapes produced by
// level encoders and highlighted fields reach the terminal unescaped.
type colorEncoder struct {
	*zapcore.EncoderConfig
	zapcore.Encoder
}

func NewColor(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return colorEncoder{
		EncoderConfig: &cfg,
		Encoder:       zapcore.NewConsoleEncoder(cfg),
	}
}

func (c colorEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf, err := c.Encoder.EncodeEntry(ent, fields)
	if err != nil {
		return nil, err
	}
	if !bytes.Contains(buf.Bytes(), escapedESC) {
		return buf, nil
	}

	unescaped := bytes.ReplaceAll(buf.Bytes(), escapedESC, []byte("\u001b"))
	buf.Reset()
	_, _ = buf.Write(unescaped)
	return buf, nil
}

func (c colorEncoder) Clone() zapcore.Encoder {
	return colorEncoder{
		EncoderConfig: c.EncoderConfig,
		Encoder:       c.Encoder.Clone(),
	}
}
