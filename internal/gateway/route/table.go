package route

import (
	"fmt"
	"strings"
)

// Entry はパスプレフィックスとサービス名の対応を表す。
type Entry struct {
	// Prefix は先頭が'/'のパスプレフィックス（例: "/courses"）。
	Prefix string
	// Service は転送先サービスの名前。
	Service string
}

// Table は登録順を保持したルートテーブル。
type Table struct {
	entries  []Entry
	byPrefix map[string]int
}

// NewTable はルート定義を正規化してテーブルを生成する。
// プレフィックスの末尾スラッシュは取り除かれる。"/"そのものはGateway自身が
// 応答するため登録できない。
func NewTable(entries []Entry) (*Table, error) {
	t := &Table{
		entries:  make([]Entry, 0, len(entries)),
		byPrefix: make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		prefix := strings.TrimSpace(e.Prefix)
		if !strings.HasPrefix(prefix, "/") {
			return nil, fmt.Errorf("routes[%d]: prefixは'/'で始まる必要があります: %q", i, e.Prefix)
		}
		prefix = strings.TrimRight(prefix, "/")
		if prefix == "" {
			return nil, fmt.Errorf("routes[%d]: ルートパス'/'は登録できません", i)
		}
		service := strings.TrimSpace(e.Service)
		if service == "" {
			return nil, fmt.Errorf("routes[%d] (%s): serviceは必須です", i, prefix)
		}
		if _, dup := t.byPrefix[prefix]; dup {
			return nil, fmt.Errorf("routes[%d]: prefix %q が重複しています", i, prefix)
		}

		t.byPrefix[prefix] = len(t.entries)
		t.entries = append(t.entries, Entry{Prefix: prefix, Service: service})
	}
	return t, nil
}

// Entries は登録順にすべてのルートを返す。
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Validate はすべてのルートがレジストリ上のサービスを参照していることを検証する。
func (t *Table) Validate(reg *Registry) error {
	for i, e := range t.entries {
		if _, ok := reg.Lookup(e.Service); !ok {
			return fmt.Errorf("routes[%d] (%s): サービス %q はservicesに登録されていません", i, e.Prefix, e.Service)
		}
	}
	return nil
}

// exact はプレフィックスに完全一致するルートを返す。
func (t *Table) exact(prefix string) (Entry, bool) {
	i, ok := t.byPrefix[prefix]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Topology は検証済みのレジストリとルートテーブルの組。
// 起動時に構築してRouter・Proxy Engine・Health Aggregatorへ注入する。
type Topology struct {
	Registry *Registry
	Table    *Table
}

// NewTopology はサービスとルートの定義から検証済みのTopologyを生成する。
// 未登録のサービスを参照するルートがあれば起動時エラーとなる。
func NewTopology(services []Service, entries []Entry) (*Topology, error) {
	reg, err := NewRegistry(services)
	if err != nil {
		return nil, err
	}
	table, err := NewTable(entries)
	if err != nil {
		return nil, err
	}
	if err := table.Validate(reg); err != nil {
		return nil, err
	}
	return &Topology{Registry: reg, Table: table}, nil
}
