package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestParseIMDbID(t *testing.T) {
	cases := []struct {
		in   string
		want IMDbID
		ok   bool
	}{
		{"tt0372784", "tt0372784", true},
		{"  TT0372784 ", "tt0372784", true},
		{"tt12345678", "tt12345678", true},
		{"tt123", "", false},
		{"nm0000123", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := ParseIMDbID(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("ParseIMDbID(%q) = (%q,%v)，期望 (%q,%v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestHasMore(t *testing.T) {
	if !HasMore(10, 100, 1) {
		t.Fatalf("10 条/共 100/第 1 页 应该还有下一页")
	}
	if !HasMore(10, 100, 2) {
		t.Fatalf("共 100 > 20，应该还有下一页")
	}
	if HasMore(10, 100, 10) {
		t.Fatalf("total == page*10 时不应还有下一页")
	}
	if HasMore(0, 100, 3) {
		t.Fatalf("本页 0 条时不应还有下一页")
	}
	if HasMore(5, 5, 1) {
		t.Fatalf("total <= page*10 时不应还有下一页")
	}
}

func TestNormalizeQuery(t *testing.T) {
	// "e" + U+0301 与预组合 "é" 应规范化为同一字符串。
	decomposed := "Ame\u0301lie"
	if got := NormalizeQuery("  " + decomposed + "\t"); got != "Am\u00e9lie" {
		t.Fatalf("期望 NFC 规范化为 Amélie，实际 %q", got)
	}
	if NormalizeQuery("   ") != "" {
		t.Fatalf("全空白查询应规范化为空串")
	}
	if !IsBlankQuery(" \n") || IsBlankQuery("x") {
		t.Fatalf("IsBlankQuery 判断不正确")
	}
}

func TestSummaryRecord_HasPoster(t *testing.T) {
	if (SummaryRecord{Poster: "N/A"}).HasPoster() {
		t.Fatalf("N/A 不应视为可用海报")
	}
	if (SummaryRecord{}).HasPoster() {
		t.Fatalf("空串不应视为可用海报")
	}
	if !(SummaryRecord{Poster: "https://img.test/p.jpg"}).HasPoster() {
		t.Fatalf("正常 URL 应视为可用海报")
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" Christian Bale, Michael Caine ,Christian Bale,, ")
	if len(got) != 2 || got[0] != "Christian Bale" || got[1] != "Michael Caine" {
		t.Fatalf("SplitList 结果不符合预期：%q", got)
	}
	if SplitList("N/A") != nil {
		t.Fatalf("N/A 应视为空列表")
	}
}

func TestSearchResultSet_CloneIsIndependent(t *testing.T) {
	rs := &SearchResultSet{Records: []SummaryRecord{{IMDbID: "tt0000001"}}, Total: 1, OK: true}
	c := rs.Clone()
	c.Records[0].Title = "changed"
	if rs.Records[0].Title != "" {
		t.Fatalf("Clone 后修改不应影响原值")
	}
	var nilSet *SearchResultSet
	if nilSet.Clone() != nil {
		t.Fatalf("nil.Clone() 应返回 nil")
	}
}

func TestNewSearchExport_FinalizeUTCAndCount(t *testing.T) {
	rs := &SearchResultSet{
		Records: []SummaryRecord{{IMDbID: "tt0372784", Title: "Batman Begins"}, {IMDbID: "tt0468569", Title: "The Dark Knight"}},
		Total:   2,
		OK:      true,
	}
	now := time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600))

	e := NewSearchExport("batman", 1, rs, "", now)
	if e.Count != 2 || e.Total != 2 {
		t.Fatalf("count/total 不正确：%+v", e)
	}

	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte(`"exported_at":"2026-02-09T02:00:00Z"`)) {
		t.Fatalf("exported_at 不是 UTC RFC3339：%s", string(b))
	}

	empty := NewSearchExport("", 0, nil, "", now)
	b, _ = json.Marshal(empty)
	if !bytes.Contains(b, []byte(`"records":[]`)) {
		t.Fatalf("无结果时 records 应输出 []：%s", string(b))
	}
}

func TestDetailRecord_CloneIsIndependent(t *testing.T) {
	d := DetailRecord{Ratings: []Rating{{Source: "Internet Movie Database", Value: "8.2/10"}}}
	c := d.Clone()
	c.Ratings[0].Value = "1/10"
	if d.Ratings[0].Value != "8.2/10" {
		t.Fatalf("Clone 后修改副本不应影响原记录：%+v", d.Ratings)
	}
	if (DetailRecord{}).Clone().Ratings != nil {
		t.Fatalf("nil Ratings 克隆后应仍为 nil")
	}
}

func TestNewDetailExport(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.FixedZone("CST", 8*3600))
	rec := DetailRecord{OK: true, Ratings: []Rating{{Source: "Internet Movie Database", Value: "8.2/10"}}}
	rec.IMDbID = "tt0372784"

	e := NewDetailExport("tt0372784", &rec, "", now)
	if e.ExportedAt.Location() != time.UTC {
		t.Fatalf("exported_at 应为 UTC，实际 %v", e.ExportedAt.Location())
	}
	if e.Record == nil || e.Record.IMDbID != "tt0372784" {
		t.Fatalf("record 缺失: %#v", e.Record)
	}
	rec.Ratings[0].Value = "1/10"
	if e.Record.Ratings[0].Value != "8.2/10" {
		t.Fatalf("导出记录应与原记录独立")
	}

	failed := NewDetailExport("tt0000001", nil, "Could not load movie details.", now)
	b, err := json.Marshal(failed)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Contains(b, []byte(`"record":null`)) {
		t.Fatalf("失败时 record 应为 null: %s", b)
	}
}
