// Package psonyaml 将 YAML 文档转换为 PSON 值树，映射的键序与重复键原样保留。
package psonyaml

import (
	"encoding/base64"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lk2023060901/pson-go/pkg/pson"
	"github.com/lk2023060901/pson-go/pkg/util/merr"
)

// Decode 解析 YAML 文本 data 并写入 v，v 原有内容会被释放。
// 多文档输入只取第一个文档，空文档得到 null。
func Decode(data []byte, v *pson.Value) error {
	v.Release()
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return merr.WrapErrParameterInvalidMsg("invalid yaml: %s", err.Error())
	}
	node := &root
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil
		}
		node = node.Content[0]
	}
	if node.Kind == 0 {
		return nil
	}
	w := &walker{}
	return w.decodeNode(node, v, 0)
}

// DecodeReader 从 r 读取全部 YAML 文本后调用 Decode。
func DecodeReader(r io.Reader, v *pson.Value) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return Decode(data, v)
}

// walker 统计展开的节点数，按与 yaml.v3 相同的比例限制别名展开，
// 防止少量别名层层引用后指数级膨胀。
type walker struct {
	decoded    int
	aliased    int
	aliasDepth int
}

func allowedAliasRatio(decoded int) float64 {
	switch {
	case decoded <= 400000:
		return 0.99
	case decoded >= 4000000:
		return 0.10
	default:
		return 0.99 - 0.89*(float64(decoded-400000)/3600000)
	}
}

func (w *walker) count() error {
	w.decoded++
	if w.aliasDepth > 0 {
		w.aliased++
	}
	if w.aliased > 100 && w.decoded > 1000 && float64(w.aliased)/float64(w.decoded) > allowedAliasRatio(w.decoded) {
		return merr.WrapErrParameterInvalidMsg("yaml document contains excessive aliasing (%d of %d nodes)", w.aliased, w.decoded)
	}
	return nil
}

func (w *walker) decodeNode(node *yaml.Node, v *pson.Value, depth int) error {
	if err := w.count(); err != nil {
		return err
	}
	switch node.Kind {
	case yaml.MappingNode:
		if depth >= pson.DefaultMaxDepth {
			return merr.WrapErrParameterInvalidMsg("yaml nested deeper than %d", pson.DefaultMaxDepth)
		}
		obj := v.EnsureObject()
		for i := 0; i+1 < len(node.Content); i += 2 {
			if err := w.decodeNode(node.Content[i+1], obj.Append(node.Content[i].Value), depth+1); err != nil {
				return err
			}
		}
		return nil
	case yaml.SequenceNode:
		if depth >= pson.DefaultMaxDepth {
			return merr.WrapErrParameterInvalidMsg("yaml nested deeper than %d", pson.DefaultMaxDepth)
		}
		arr := v.EnsureArray()
		for _, child := range node.Content {
			if err := w.decodeNode(child, arr.Add(), depth+1); err != nil {
				return err
			}
		}
		return nil
	case yaml.AliasNode:
		if node.Alias == nil {
			v.SetNull()
			return nil
		}
		// 别名展开同样计入深度，自引用的锚点会在深度上限处失败。
		w.aliasDepth++
		defer func() { w.aliasDepth-- }()
		return w.decodeNode(node.Alias, v, depth+1)
	case yaml.ScalarNode:
		return decodeScalar(node, v)
	default:
		return merr.WrapErrParameterInvalidMsg("unexpected yaml node kind %d", node.Kind)
	}
}

func decodeScalar(node *yaml.Node, v *pson.Value) error {
	switch node.ShortTag() {
	case "!!null":
		v.SetNull()
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return merr.WrapErrParameterInvalidMsg("invalid yaml bool %q", node.Value)
		}
		v.SetBool(b)
	case "!!int":
		var i int64
		if err := node.Decode(&i); err == nil {
			v.SetInt(i)
			return nil
		}
		var u uint64
		if err := node.Decode(&u); err == nil {
			v.SetUint(u)
			return nil
		}
		var f float64
		if err := node.Decode(&f); err != nil {
			return merr.WrapErrParameterInvalidMsg("invalid yaml int %q", node.Value)
		}
		v.SetFloat64(f)
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return merr.WrapErrParameterInvalidMsg("invalid yaml float %q", node.Value)
		}
		v.SetFloat64(f)
	case "!!binary":
		raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(node.Value), ""))
		if err != nil {
			return merr.WrapErrParameterInvalidMsg("invalid yaml binary: %s", err.Error())
		}
		return v.SetBytes(raw)
	default:
		// !!str、!!timestamp 以及自定义标签都按原文保存。
		return v.SetString(node.Value)
	}
	return nil
}
