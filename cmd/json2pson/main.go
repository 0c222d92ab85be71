// json2pson 将 JSON 文本转换为 PSON。
//
//	json2pson [--config path] [-framed] [-yaml] [file...]
//
// 不带文件参数时从标准输入读取、向标准输出写出；
// 带文件参数时每个文件并发转换，结果写入同目录下的 <file>.pson。
// -framed 时输出为带长度前缀的文档帧（按配置压缩/加密）；-yaml 时输入按 YAML 解析。
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/pson-go/application"
	"github.com/lk2023060901/pson-go/internal/network/codec"
	"github.com/lk2023060901/pson-go/internal/pool/ringbuffer"
	"github.com/lk2023060901/pson-go/pkg/log"
	"github.com/lk2023060901/pson-go/pkg/pson"
	"github.com/lk2023060901/pson-go/pkg/pson/psonjson"
	"github.com/lk2023060901/pson-go/pkg/pson/psonyaml"
	"github.com/lk2023060901/pson-go/pkg/util/conc"
	"github.com/lk2023060901/pson-go/pkg/util/merr"
)

type converter struct {
	app    *application.Application
	codec  codec.Codec
	framed bool
	yaml   bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "json2pson:", err)
		os.Exit(1)
	}
}

func run() error {
	app := application.New()
	if err := app.Run(); err != nil {
		return err
	}
	defer log.Sync()

	fs := flag.NewFlagSet("json2pson", flag.ContinueOnError)
	framed := fs.Bool("framed", false, "write length-prefixed document frames")
	asYAML := fs.Bool("yaml", false, "parse input as yaml instead of json")
	if err := fs.Parse(app.Args()); err != nil {
		return err
	}

	c := &converter{app: app, framed: *framed, yaml: *asYAML}
	if c.framed {
		var err error
		if c.codec, err = app.NewCodec(); err != nil {
			return err
		}
	}

	ctx := context.Background()
	files := fs.Args()
	if len(files) == 0 {
		out := bufio.NewWriter(os.Stdout)
		if err := c.convert(ctx, os.Stdin, out); err != nil {
			return err
		}
		return out.Flush()
	}
	return c.convertFiles(ctx, files)
}

// convertFiles 在协程池上并发转换多个文件，返回第一个错误。
func (c *converter) convertFiles(ctx context.Context, files []string) error {
	pool := conc.NewDefaultPool(conc.WithName("json2pson"))
	defer pool.Release()

	g, ctx := errgroup.WithContext(ctx)
	for _, file := range files {
		file := file
		g.Go(func() error {
			err := <-pool.Submit(func() error {
				return c.convertFile(ctx, file)
			})
			// 其他文件失败导致的取消不再重复记录。
			if err != nil && !merr.IsCanceledOrTimeout(err) {
				log.Ctx(ctx).Warn("convert failed", zap.String("file", file), zap.Error(err))
			}
			return err
		})
	}
	return g.Wait()
}

func (c *converter) convertFile(ctx context.Context, file string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(file)
	if err != nil {
		return err
	}
	defer in.Close()

	target := file + ".pson"
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out)
	if err := c.convert(ctx, in, w); err != nil {
		out.Close()
		return fmt.Errorf("%s: %w", file, err)
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return err
	}
	log.Ctx(ctx).Info("converted", zap.String("file", file), zap.String("target", target))
	return out.Close()
}

// convert 读取 r 中的整段输入，转换后写入 w。
// 值树的载荷放在独立的 arena 上，容量不小于输入文本长度，转换过程中不会回绕。
func (c *converter) convert(ctx context.Context, r io.Reader, w io.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	var v *pson.Value
	decode := psonjson.Decode
	if c.yaml {
		// YAML 别名展开后可能超过输入长度，使用全局分配器。
		v = pson.NewValue(nil)
		decode = psonyaml.Decode
	} else {
		arena := ringbuffer.GetAtLeast(len(data))
		defer ringbuffer.Put(arena)
		v = pson.NewValue(arena)
	}
	defer v.Release()
	if err := decode(data, v); err != nil {
		return err
	}

	if c.framed {
		return c.codec.Encode(ctx, w, v)
	}
	encOpts, err := c.app.PSON().Encoder.Options()
	if err != nil {
		return err
	}
	_, err = pson.NewEncoderWithOptions(w, encOpts).Encode(v)
	return err
}
