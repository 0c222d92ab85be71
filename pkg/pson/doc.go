// Package pson 实现了一种无 schema 的紧凑二进制序列化格式。
//
// 线格式与 Protocol Buffers 的 tag/长度帧完全兼容，但 tag 中的 field number
// 不再表示 schema 字段编号，而是携带值的运行时类型（见 Type），
// 因此解码端无需任何 schema 即可还原出一棵动态类型的值树。
//
// 基本用法：
//
//	var root pson.Value
//	root.GetOrCreate("temperature").SetFloat64(21.5)
//	root.GetOrCreate("online").SetBool(true)
//	data, err := pson.Marshal(&root)
//
//	var out pson.Value
//	err = pson.Unmarshal(data, &out)
//	t := out.Get("temperature").Float()
//
// 字符串与字节数组的载荷从 Allocator 中申请。进程级默认分配器通过 Install
// 在启动时安装一次；也可以为每棵值树显式指定独立的分配器（NewValue）。
// 值树本身不是并发安全的，分配器实现内部加锁，可以被多个协程共享。
package pson
