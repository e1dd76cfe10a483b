package report_test

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/antiplag/internal/domain/model"
	"github.com/okian/antiplag/internal/domain/report"
)

const sampleReport = `<HTML>
<HEAD><TITLE>Moss Results</TITLE></HEAD>
<BODY>
<TABLE>
<TR><TH>File 1<TH>File 2<TH>Lines Matched
<TR><TD><A HREF="http://moss.stanford.edu/results/1/42/match0.html">ANTIPLAGIARISM/A/alice.py (85%)</A>
    <TD><A HREF="http://moss.stanford.edu/results/1/42/match0.html">ANTIPLAGIARISM/A/bob.py (90%)</A>
<TD ALIGN=right>12
<TR><TD><A HREF="http://moss.stanford.edu/results/1/42/match1.html">ANTIPLAGIARISM/A/john_doe.py (60%)</A>
    <TD><A HREF="http://moss.stanford.edu/results/1/42/match1.html">ANTIPLAGIARISM/A/carol.py (95%)</A>
<TD ALIGN=right>7
</TABLE>
<A HREF="http://moss.stanford.edu/general/format.html">format</A>
</BODY>
</HTML>
`

func TestExtractors(t *testing.T) {
	want := []model.MatchGroup{
		{Index: "0", Entries: []model.MatchEntry{{User: "alice", Percent: 85}, {User: "bob", Percent: 90}}},
		{Index: "1", Entries: []model.MatchEntry{{User: "john doe", Percent: 60}, {User: "carol", Percent: 95}}},
	}

	for _, kind := range []string{"regex", "html"} {
		Convey("Given the "+kind+" extractor", t, func() {
			x, err := report.New(kind, ".py")
			So(err, ShouldBeNil)

			Convey("When extracting a two-match report", func() {
				groups, err := x.Extract([]byte(sampleReport))

				Convey("Then groups come back in discovery order with decoded users", func() {
					So(err, ShouldBeNil)
					So(groups, ShouldResemble, want)
				})
			})

			Convey("When the report has no matches", func() {
				groups, err := x.Extract([]byte("<HTML><BODY>No matches were found in your submission.</BODY></HTML>\n"))

				Convey("Then no groups are returned", func() {
					So(err, ShouldBeNil)
					So(groups, ShouldBeEmpty)
				})
			})

			Convey("When user names carry HTML entities", func() {
				doc := `<TR><TD><A HREF="http://x/results/1/2/match0.html">W/A/o&#39;neil.py (85%)</A>` + "\n" +
					`    <TD><A HREF="http://x/results/1/2/match0.html">W/A/ann&amp;bo&#43;b.py (91%)</A>` + "\n"
				groups, err := x.Extract([]byte(doc))

				Convey("Then names are decoded", func() {
					So(err, ShouldBeNil)
					So(groups, ShouldResemble, []model.MatchGroup{
						{Index: "0", Entries: []model.MatchEntry{{User: "o'neil", Percent: 85}, {User: "ann&bo+b", Percent: 91}}},
					})
				})
			})

			Convey("When a row references a file with another extension", func() {
				doc := `<A HREF="http://x/results/1/2/match3.html">W/A/alice.cpp (40%)</A>` + "\n" +
					`<A HREF="http://x/results/1/2/match3.html">W/A/bob.py (41%)</A>` + "\n"
				groups, err := x.Extract([]byte(doc))

				Convey("Then only the matching side is kept", func() {
					So(err, ShouldBeNil)
					So(groups, ShouldResemble, []model.MatchGroup{
						{Index: "3", Entries: []model.MatchEntry{{User: "bob", Percent: 41}}},
					})
				})
			})
		})
	}

	Convey("Given an unknown extractor kind", t, func() {
		_, err := report.New("xml", ".py")

		Convey("Then construction fails", func() {
			So(errors.Is(err, report.ErrUnknownExtractor), ShouldBeTrue)
		})
	})
}

func TestExtractorsAgree(t *testing.T) {
	Convey("Given a report rendered with escaped names", t, func() {
		doc := sampleReport +
			`<A HREF="http://x/results/1/2/match5.html">W/A/o&#39;neil.py (70%)</A>` + "\n" +
			`<A HREF="http://x/results/1/2/match5.html">W/A/d&#39;arcy_jr.py (75%)</A>` + "\n"

		Convey("When both extractors read it", func() {
			rx, err := report.New("regex", ".py")
			So(err, ShouldBeNil)
			hx, err := report.New("html", ".py")
			So(err, ShouldBeNil)

			fromRegex, rerr := rx.Extract([]byte(doc))
			fromHTML, herr := hx.Extract([]byte(doc))

			Convey("Then they return the same groups", func() {
				So(rerr, ShouldBeNil)
				So(herr, ShouldBeNil)
				So(fromRegex, ShouldResemble, fromHTML)
				So(fromRegex, ShouldHaveLength, 3)
				So(fromRegex[2].Entries[1].User, ShouldEqual, "d'arcy jr")
			})
		})
	})
}

func TestGroupChecks(t *testing.T) {
	Convey("Given groups with one, two and three sides", t, func() {
		one := model.MatchGroup{Index: "0", Entries: []model.MatchEntry{{User: "a", Percent: 1}}}
		two := model.MatchGroup{Index: "1", Entries: []model.MatchEntry{{User: "a", Percent: 1}, {User: "b", Percent: 2}}}
		three := model.MatchGroup{Index: "2", Entries: []model.MatchEntry{{User: "a"}, {User: "b"}, {User: "c"}}}

		Convey("Then Check rejects the first malformed group", func() {
			So(report.Check([]model.MatchGroup{two}), ShouldBeNil)
			err := report.Check([]model.MatchGroup{two, one, three})
			So(errors.Is(err, report.ErrMalformedGroup), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "match 0 has 1 entries")
		})

		Convey("Then WellFormed splits kept from dropped", func() {
			kept, dropped := report.WellFormed([]model.MatchGroup{one, two, three})
			So(kept, ShouldResemble, []model.MatchGroup{two})
			So(dropped, ShouldResemble, []model.MatchGroup{one, three})
		})
	})
}
