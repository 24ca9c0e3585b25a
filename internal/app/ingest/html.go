package ingest

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/language"

	"outlook_service/internal/app/model"
)

// 保存済みの労働市場見通しレポートページのセレクタ
const (
	reportSelector   = "article.outlook-report"
	titleSelector    = ".outlook-title"
	ratingSelector   = ".outlook-rating"
	trendsSelector   = ".outlook-trends p"
	programSelector  = "a.outlook-program[data-nid]"
	releaseDateStyle = "2006-01-02"
)

// ParseOutlookPage extracts the outlook reports of one saved page. Reports
// missing a required attribute are skipped and reported in the returned error;
// the well-formed ones are returned regardless.
func ParseOutlookPage(r io.Reader) ([]OutlookRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	lang := pageLang(doc)
	var (
		out  []OutlookRecord
		errs []error
	)
	doc.Find(reportSelector).Each(func(i int, s *goquery.Selection) {
		rec, err := parseReport(s, lang)
		if err != nil {
			errs = append(errs, fmt.Errorf("report %d: %w", i+1, err))
			return
		}
		out = append(out, rec)
	})
	return out, errors.Join(errs...)
}

func parseReport(s *goquery.Selection, lang string) (OutlookRecord, error) {
	rec := OutlookRecord{
		NOC:                attr(s, "data-noc"),
		EconomicRegionCode: attr(s, "data-er"),
		Province:           strings.ToUpper(attr(s, "data-province")),
		Title:              text(s.Find(titleSelector).First()),
		Outlook:            text(s.Find(ratingSelector).First()),
		Lang:               lang,
	}
	if l := attr(s, "lang"); l != "" {
		rec.Lang = normalizeLang(l)
	}

	var paras []string
	s.Find(trendsSelector).Each(func(_ int, p *goquery.Selection) {
		if t := text(p); t != "" {
			paras = append(paras, t)
		}
	})
	rec.Trends = strings.Join(paras, "\n\n")

	switch {
	case rec.NOC == "":
		return rec, errors.New("missing data-noc")
	case rec.EconomicRegionCode == "":
		return rec, errors.New("missing data-er")
	case rec.Province == "":
		return rec, errors.New("missing data-province")
	case rec.Title == "":
		return rec, errors.New("missing title")
	case rec.Outlook == "":
		return rec, errors.New("missing outlook rating")
	case rec.Trends == "":
		return rec, errors.New("missing trends")
	}

	released, err := time.Parse(releaseDateStyle, attr(s, "data-released"))
	if err != nil {
		return rec, fmt.Errorf("data-released: %w", err)
	}
	rec.ReleaseDate = released

	if a := s.Find(programSelector).First(); a.Length() > 0 {
		nid, err := strconv.Atoi(attr(a, "data-nid"))
		if err != nil {
			return rec, fmt.Errorf("data-nid: %w", err)
		}
		rec.ProgramNID = &nid
	}
	return rec, nil
}

// pageLang reads <html lang>, falling back to EN.
func pageLang(doc *goquery.Document) string {
	if l := attr(doc.Find("html").First(), "lang"); l != "" {
		return normalizeLang(l)
	}
	return model.DefaultLang
}

// normalizeLang reduces a tag to its upper-case base language ("fr-CA" -> "FR").
func normalizeLang(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return strings.ToUpper(tag)
	}
	base, _ := t.Base()
	return strings.ToUpper(base.String())
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}

// text returns the selection text with runs of whitespace collapsed.
func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
