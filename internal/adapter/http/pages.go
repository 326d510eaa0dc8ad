package http

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/couchcryptid/ais-ship-tracker/internal/domain"
	"github.com/couchcryptid/ais-ship-tracker/internal/pipeline"
	"github.com/couchcryptid/ais-ship-tracker/internal/session"
	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

const (
	leafletCSS = "https://unpkg.com/leaflet@1.9.4/dist/leaflet.css"
	leafletJS  = "https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"
)

type indexView struct {
	Session        session.Session
	Candidates     []string
	Result         *pipeline.Result
	Prompt         string
	Error          string
	Notice         string
	PreviewRows    int
	PublishEnabled bool
}

type mapView struct {
	Title           string
	Points          int
	Vessels         int
	DataURL         string
	TileURL         string
	TileAttribution string
}

const pageCSS = `
body { font-family: system-ui, sans-serif; margin: 0; color: #1f2328; }
main { max-width: 1100px; margin: 0 auto; padding: 1.5rem; }
section { margin-bottom: 1.5rem; }
.error { background: #ffebe9; border: 1px solid #ff8182; padding: .5rem .75rem; }
.notice { background: #dafbe1; border: 1px solid #4ac26b; padding: .5rem .75rem; }
.actions a, .actions button { margin-right: .75rem; }
table { border-collapse: collapse; font-size: .85rem; }
th, td { border: 1px solid #d0d7de; padding: .25rem .5rem; text-align: left; }
select[multiple] { min-width: 20rem; min-height: 10rem; }
#map { position: absolute; top: 3rem; bottom: 0; left: 0; right: 0; }
.map-header { height: 3rem; display: flex; align-items: center; gap: 1rem; padding: 0 1rem; }
.legend { background: #fff; padding: .5rem; line-height: 1.4; }
.legend i { display: inline-block; width: .75rem; height: .75rem; border-radius: 50%; margin-right: .4rem; }
`

func page(title string, head []Node, body ...Node) Node {
	return Doctype(
		HTML(
			Lang("en"),
			Head(
				Meta(Charset("utf-8")),
				Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
				TitleEl(Text(title)),
				StyleEl(Raw(pageCSS)),
				Group(head),
			),
			Body(body...),
		),
	)
}

func indexPage(v indexView) Node {
	content := []Node{
		H1(Text("Ship Tracker")),
		If(v.Error != "", P(Class("error"), Text(v.Error))),
		If(v.Notice != "", P(Class("notice"), Text(v.Notice))),
		uploadSection(v),
	}
	if v.Session.HasUpload() {
		content = append(content, filterSection(v))
	}
	if v.Prompt != "" {
		content = append(content, P(Strong(Text(v.Prompt))))
	}
	if v.Result != nil {
		content = append(content, resultSection(v))
	}
	return page("Ship Tracker", nil, Main(content...))
}

func uploadSection(v indexView) Node {
	var status Node
	if v.Session.HasUpload() {
		status = P(Textf("%s. Rows of Data: %d", v.Session.Upload.Name, v.Session.Upload.Rows()))
	} else {
		status = P(Text("Upload an AIS broadcast CSV to begin."))
	}
	return Section(
		H2(Text("Upload")),
		Form(
			Method("post"),
			Action("/upload"),
			EncType("multipart/form-data"),
			Input(Type("file"), Name("file"), Accept(".csv,text/csv"), Required()),
			Button(Type("submit"), Text("Upload")),
		),
		status,
	)
}

func filterSection(v indexView) Node {
	options := make([]Node, 0, len(v.Candidates))
	for _, name := range v.Candidates {
		opt := []Node{Value(name), Text(name)}
		if slices.Contains(v.Session.Selection, name) {
			opt = append(opt, Selected())
		}
		options = append(options, Option(opt...))
	}

	return Section(
		H2(Text("Filter")),
		Form(
			Method("post"),
			Action("/filter"),
			P(
				Label(For("min_length"), Text("Minimum ship length (m) ")),
				Input(
					Type("number"),
					ID("min_length"),
					Name("min_length"),
					Min("0"),
					Step("any"),
					Value(strconv.FormatFloat(v.Session.MinLength, 'f', -1, 64)),
				),
			),
			P(
				Label(For("vessel"), Textf("Ships (%d) ", len(v.Candidates))),
				Select(ID("vessel"), Name("vessel"), Multiple(), Group(options)),
			),
			Button(Type("submit"), Text("Apply")),
		),
	)
}

func resultSection(v indexView) Node {
	res := v.Result
	return Section(
		H2(Text("Selection")),
		P(Textf("Total data points: %d", res.Table.Len())),
		Div(
			Class("actions"),
			A(Href("/map"), Text("Generate Map")),
			A(Href("/download"), Text("Download CSV")),
			If(v.PublishEnabled, Form(
				Method("post"),
				Action("/publish"),
				Style("display:inline"),
				Button(Type("submit"), Text("Publish")),
			)),
		),
		summaryTable(res.Summaries),
		previewTable(res.Table, v.PreviewRows),
	)
}

func summaryTable(summaries []domain.VesselSummary) Node {
	rows := make([]Node, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, Tr(
			Td(Text(s.VesselName)),
			Td(Text(s.MMSI)),
			Td(Text(s.IMO)),
			Td(Text(strconv.Itoa(s.Points))),
			Td(Text(s.FirstSeen.Format(domain.TimestampLayout))),
			Td(Text(s.LastSeen.Format(domain.TimestampLayout))),
			Td(Textf("%.2f", s.MaxSpeed)),
			Td(Textf("%.1f", s.Distance/1000)),
			Td(Text(lastPosition(s))),
		))
	}
	return Div(
		H2(Text("Vessels")),
		Table(
			THead(Tr(
				Th(Text("Name")), Th(Text("MMSI")), Th(Text("IMO")), Th(Text("Points")),
				Th(Text("First Seen")), Th(Text("Last Seen")), Th(Text("Max Speed (m/s)")),
				Th(Text("Distance (km)")), Th(Text("Last Position")),
			)),
			TBody(rows...),
		),
	)
}

func lastPosition(s domain.VesselSummary) string {
	if s.LastPlace != "" {
		return s.LastPlace
	}
	return fmt.Sprintf("%.4f, %.4f", s.LastLat, s.LastLon)
}

func previewTable(t *domain.EnrichedTable, limit int) Node {
	header := t.Header()
	n := t.Len()
	if limit > 0 && n > limit {
		n = limit
	}

	head := make([]Node, 0, len(header))
	for _, col := range header {
		head = append(head, Th(Text(col)))
	}

	rows := make([]Node, 0, n)
	for _, rec := range t.Records[:n] {
		cells := make([]Node, 0, len(header))
		for _, col := range header {
			value := rec.Value(col)
			if col == domain.ColInfo && value != "" {
				cells = append(cells, Td(A(Href(value), Target("_blank"), Rel("noopener"), Text(value))))
				continue
			}
			cells = append(cells, Td(Text(value)))
		}
		rows = append(rows, Tr(cells...))
	}

	return Div(
		H2(Textf("Preview (%d of %d rows)", n, t.Len())),
		Table(THead(Tr(head...)), TBody(rows...)),
	)
}

const mapScript = `
(function () {
  var el = document.getElementById("map");
  var map = L.map(el);
  L.tileLayer(el.dataset.tiles, { attribution: el.dataset.attribution, maxZoom: 19 }).addTo(map);

  fetch(el.dataset.src).then(function (r) {
    if (!r.ok) { throw new Error(r.status + " " + r.statusText); }
    return r.json();
  }).then(function (fig) {
    map.setView(fig.center, fig.zoom);
    L.geoJSON(fig.features, {
      pointToLayer: function (f, latlng) {
        return L.circleMarker(latlng, {
          radius: 5, weight: 1, color: "#333",
          fillColor: f.properties["marker-color"], fillOpacity: 0.9
        });
      },
      onEachFeature: function (f, layer) {
        var rows = [];
        Object.keys(f.properties).forEach(function (k) {
          if (k === "marker-color") { return; }
          var div = document.createElement("div");
          div.textContent = k + ": " + f.properties[k];
          rows.push(div.outerHTML);
        });
        layer.bindPopup(rows.join(""));
      }
    }).addTo(map);

    var legend = L.control({ position: "topright" });
    legend.onAdd = function () {
      var div = L.DomUtil.create("div", "legend");
      fig.legend.forEach(function (e) {
        var row = document.createElement("div");
        var swatch = document.createElement("i");
        swatch.style.background = e.color;
        row.appendChild(swatch);
        row.appendChild(document.createTextNode(e.name || "(unnamed)"));
        div.appendChild(row);
      });
      return div;
    };
    legend.addTo(map);
  }).catch(function (err) {
    el.textContent = "Could not load map data: " + err.message;
  });
})();
`

func mapPage(v mapView) Node {
	head := []Node{
		Link(Rel("stylesheet"), Href(leafletCSS)),
		Script(Src(leafletJS)),
	}
	return page(v.Title, head,
		Div(
			Class("map-header"),
			Strong(Text(v.Title)),
			Span(Textf("%d points, %d vessels", v.Points, v.Vessels)),
			A(Href("/"), Text("Back")),
			A(Href("/download"), Text("Download CSV")),
		),
		Div(
			ID("map"),
			Attr("data-src", v.DataURL),
			Attr("data-tiles", v.TileURL),
			Attr("data-attribution", v.TileAttribution),
		),
		Script(Raw(mapScript)),
	)
}
