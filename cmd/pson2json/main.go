// pson2json 解码一个 PSON 文件并以 JSON 文本输出。
//
//	pson2json [--config path] [-framed] [-indent] <file>
//
// 解码结果写到标准输出，"decoding ok" 或错误信息（含已消耗的字节数）写到标准错误。
// -framed 时按文档帧逐个解码，每个文档输出一行 JSON。
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/lk2023060901/pson-go/application"
	"github.com/lk2023060901/pson-go/pkg/log"
	"github.com/lk2023060901/pson-go/pkg/pson"
	"github.com/lk2023060901/pson-go/pkg/pson/psonjson"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pson2json:", err)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, "decoding ok")
}

func run() error {
	app := application.New()
	if err := app.Run(); err != nil {
		return err
	}
	defer log.Sync()

	fs := flag.NewFlagSet("pson2json", flag.ContinueOnError)
	framed := fs.Bool("framed", false, "read length-prefixed document frames")
	indent := fs.Bool("indent", false, "indent json output")
	if err := fs.Parse(app.Args()); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: pson2json [-framed] [-indent] <file>")
	}

	in, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer in.Close()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	encode := psonjson.Encode
	if *indent {
		encode = psonjson.EncodeIndent
	}

	if *framed {
		return decodeFrames(app, in, out, encode)
	}

	v := pson.NewValue(nil)
	defer v.Release()
	dec := pson.NewDecoderWithOptions(bufio.NewReader(in), app.PSON().Decoder.Options())
	n, err := dec.Decode(v)
	if err != nil {
		return fmt.Errorf("decoding error after %d bytes: %w", n, err)
	}
	if err := encode(out, v); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out)
	return err
}

func decodeFrames(app *application.Application, r io.Reader, w io.Writer, encode func(io.Writer, *pson.Value) error) error {
	c, err := app.NewCodec()
	if err != nil {
		return err
	}
	br := bufio.NewReader(r)
	ctx := context.Background()
	for i := 0; ; i++ {
		doc, err := c.Decode(ctx, br)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decoding error in document %d: %w", i, err)
		}
		err = encode(w, doc.Value)
		doc.Release()
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
}
