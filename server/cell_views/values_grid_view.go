package cell_views

import (
	"fmt"
	"html/template"

	"gridvalue/server/fastview"
)

// ValuesGrid is an svg table of cell utilities.
type ValuesGrid struct {
	id string
}

func NewValuesGrid(id string) *ValuesGrid {
	return &ValuesGrid{id: template.HTMLEscapeString(id)}
}

// Parse defines the grid's template, which expects [][]Cell as its data and
// the add/mult/div func-map of the root view.
func (vg *ValuesGrid) Parse(
	parent *template.Template,
) (name string, err error) {
	name = vg.id
	_, err = parent.Parse(
		`{{ define "` + name + `" }}
		<div id="` + vg.id + `-values">
			{{ $rows := len . }}
			{{ $cols := len (index . 0) }}
			{{ $cell_width := 100 }}
			{{ $cell_height := $cell_width }}
			{{ $half_width := div $cell_width 2 }}
			{{ $half_height := div $cell_height 2 }}
			<svg id="` + vg.id + `" xmlns='http://www.w3.org/2000/svg'
				width="{{ add (mult $cell_width $cols) 1 }}px"
				height="{{ add (mult $cell_height $rows) 1 }}px"
				style="shape-rendering: crispEdges;">
				{{ range $row := . }}
					{{ range $cell := $row }}
					<g>
						<rect id="{{$cell.Row}}-{{$cell.Col}}-value-rect"
							x="{{ mult $cell.Col $cell_width }}"
							y="{{ mult $cell.Row $cell_height }}"
							width="{{ $cell_width }}"
							height="{{ $cell_height }}"
							fill="{{ $cell.Fill }}"
							stroke="black"
							stroke-width="1"/>
						<text id="{{$cell.Row}}-{{$cell.Col}}-value-text"
							x="{{ add (mult $cell.Col $cell_width) $half_width }}"
							y="{{ add (mult $cell.Row $cell_height) $half_height }}"
							fill="white"
							dominant-baseline="central" text-anchor="middle"
							>{{ $cell.Text }}</text>
					</g>
					{{ end }}
				{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}

// Update returns the set of view updates needed for the view to reflect the current values.
func (vg *ValuesGrid) Update(cells [][]Cell) (ops []fastview.EleUpdate) {
	for _, row := range cells {
		for _, cell := range row {
			ops = append(ops,
				fastview.EleUpdate{
					EleId: fmt.Sprintf("%d-%d-value-text", cell.Row, cell.Col),
					Ops: []fastview.Op{
						{Key: "textContent", Value: cell.Text},
					},
				},
				fastview.EleUpdate{
					EleId: fmt.Sprintf("%d-%d-value-rect", cell.Row, cell.Col),
					Ops: []fastview.Op{
						{Key: "fill", Value: cell.Fill},
					},
				})
		}
	}
	return
}
