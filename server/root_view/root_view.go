package root_view

import (
	"html/template"

	"gridvalue/server/cell_views"
	"gridvalue/server/fastview"
)

// PageData is the root view-model: a status line and the grid cells.
type PageData struct {
	Status string
	Cells  [][]cell_views.Cell
}

const statusId = "status"

// RootView is the main page's index.html, which is the container for all the
// view components and the websocket bootstrap code.
type RootView struct {
	views []fastview.ViewComponent[[][]cell_views.Cell]
}

// NewRootView creates the main page and the views it contains.
func NewRootView() *RootView {
	return &RootView{
		views: []fastview.ViewComponent[[][]cell_views.Cell]{
			cell_views.NewValuesGrid("valuesgrid"),
		},
	}
}

// Update returns the element updates for the status line and every child view.
func (rv *RootView) Update(page PageData) (ops []fastview.EleUpdate) {
	ops = append(ops, fastview.EleUpdate{
		EleId: statusId,
		Ops: []fastview.Op{
			{Key: "textContent", Value: page.Status},
		},
	})
	for _, view := range rv.views {
		ops = append(ops, view.Update(page.Cells)...)
	}
	return
}

// Parse builds the main page's template, with websocket bootstrap code, and returns its name.
// It also sets up the func-map that the child components depend on.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	rt := parent.Funcs(
		template.FuncMap{
			"add":  func(i, j int) int { return i + j },
			"sub":  func(i, j int) int { return i - j },
			"mult": func(i, j int) int { return i * j },
			"div":  func(i, j int) int { return i / j },
		})

	var bodySpec string
	for _, vc := range rv.views {
		tname, parseErr := vc.Parse(rt)
		if parseErr != nil {
			err = parseErr
			return
		}
		bodySpec += `{{ template "` + tname + `" .Cells }}`
	}

	// The main template bootstraps the rest: sets up client websocket and updates, aggregates views.
	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<link rel="icon" href="data:,">
			<title>Grid utilities</title>
			<!--The server pushes new element values to the view via websocket.-->
			<script>
				const ws = new WebSocket("ws://" + location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				// When the server pushes view updates, find these eles and update them.
				ws.onmessage = function (event) {
					items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (ele === null) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}
			</script>
		</head>
		<body>
		<p id="` + statusId + `">{{ .Status }}</p>
		` + bodySpec + `
		</body></html>
	{{ end }}
	`

	_, err = rt.Parse(indexTemplate)
	return
}
