package visualizer

import (
	"bytes"
	"encoding/json"
	"html/template"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/solitaryfield/textkg/pkg/kg"
)

// pageTemplate is a self-contained D3 force layout with a fixed color
// per entity type and dashed trait edges.
const pageTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Text Knowledge Graph</title>
    <script src="https://d3js.org/d3.v7.min.js"></script>
    <style>
        body {
            margin: 0;
            font-family: Arial, sans-serif;
        }
        #graph {
            width: 100%;
            height: 100vh;
            background-color: #fafafa;
        }
        .node {
            stroke: #fff;
            stroke-width: 1.5px;
        }
        .link {
            stroke: #999;
            stroke-opacity: 0.6;
        }
        .link.trait {
            stroke: #b07aa1;
            stroke-dasharray: 4 2;
        }
        .node-label {
            font-size: 10px;
            pointer-events: none;
        }
        .controls {
            position: absolute;
            top: 10px;
            left: 10px;
            background-color: rgba(255,255,255,0.85);
            padding: 10px;
            border-radius: 5px;
            box-shadow: 0 0 10px rgba(0,0,0,0.1);
        }
        .legend-swatch {
            display: inline-block;
            width: 10px;
            height: 10px;
            margin-right: 4px;
            border-radius: 50%;
        }
    </style>
</head>
<body>
    <div id="graph"></div>
    <div class="controls">
        <h3>Text Knowledge Graph</h3>
        <p>Nodes: {{.NodeCount}}, Edges: {{.EdgeCount}}</p>
        <div>
            <label for="node-type-filter">Filter by node type:</label>
            <select id="node-type-filter">
                <option value="all">All Types</option>
            </select>
        </div>
        <div id="legend"></div>
    </div>

    <script>
        const graphData = {{.GraphData}};

        const typeColors = {
            "person": "#4e79a7",
            "organization": "#f28e2b",
            "location": "#59a14f",
            "trait": "#b07aa1",
            "unknown": "#bab0ac"
        };
        const colorFor = type => typeColors[type] || typeColors["unknown"];

        const simulation = d3.forceSimulation(graphData.nodes)
            .force("link", d3.forceLink(graphData.edges).id(d => d.id).distance(100))
            .force("charge", d3.forceManyBody().strength(-300))
            .force("center", d3.forceCenter(window.innerWidth / 2, window.innerHeight / 2));

        const svg = d3.select("#graph")
            .append("svg")
            .attr("width", "100%")
            .attr("height", "100%")
            .call(d3.zoom().on("zoom", (event) => {
                g.attr("transform", event.transform);
            }));

        const g = svg.append("g");

        const nodeTypes = [...new Set(graphData.nodes.map(node => node.type))];
        nodeTypes.forEach(type => {
            d3.select("#node-type-filter")
                .append("option")
                .attr("value", type)
                .text(type);
            d3.select("#legend")
                .append("div")
                .html('<span class="legend-swatch" style="background:' + colorFor(type) + '"></span>' + type);
        });

        const link = g.append("g")
            .selectAll("line")
            .data(graphData.edges)
            .enter()
            .append("line")
            .attr("class", d => d.type === "has_trait" ? "link trait" : "link")
            .attr("stroke-width", d => Math.sqrt(d.weight) * 2);

        const node = g.append("g")
            .selectAll("circle")
            .data(graphData.nodes)
            .enter()
            .append("circle")
            .attr("class", "node")
            .attr("r", d => d.type === "trait" ? 6 : 9)
            .attr("fill", d => colorFor(d.type))
            .call(d3.drag()
                .on("start", dragstarted)
                .on("drag", dragged)
                .on("end", dragended));

        const label = g.append("g")
            .selectAll("text")
            .data(graphData.nodes)
            .enter()
            .append("text")
            .attr("class", "node-label")
            .attr("dx", 12)
            .attr("dy", ".35em")
            .text(d => d.label);

        node.append("title")
            .text(d => d.label + " (" + d.type + ")");

        link.append("title")
            .text(d => d.type + " (weight " + d.weight.toFixed(2) + ")");

        simulation.on("tick", () => {
            link
                .attr("x1", d => d.source.x)
                .attr("y1", d => d.source.y)
                .attr("x2", d => d.target.x)
                .attr("y2", d => d.target.y);

            node
                .attr("cx", d => d.x)
                .attr("cy", d => d.y);

            label
                .attr("x", d => d.x)
                .attr("y", d => d.y);
        });

        d3.select("#node-type-filter").on("change", function() {
            const selectedType = this.value;

            if (selectedType === "all") {
                node.style("visibility", "visible");
                link.style("visibility", "visible");
                label.style("visibility", "visible");
                return;
            }

            node.style("visibility", d => d.type === selectedType ? "visible" : "hidden");
            label.style("visibility", d => d.type === selectedType ? "visible" : "hidden");
            link.style("visibility", d => {
                const sourceVisible = d.source.type === selectedType;
                const targetVisible = d.target.type === selectedType;
                return sourceVisible || targetVisible ? "visible" : "hidden";
            });
        });

        function dragstarted(event, d) {
            if (!event.active) simulation.alphaTarget(0.3).restart();
            d.fx = d.x;
            d.fy = d.y;
        }

        function dragged(event, d) {
            d.fx = event.x;
            d.fy = event.y;
        }

        function dragended(event, d) {
            if (!event.active) simulation.alphaTarget(0);
            d.fx = null;
            d.fy = null;
        }
    </script>
</body>
</html>
`

// D3Visualizer renders the exported graph as a standalone interactive
// HTML page.
type D3Visualizer struct {
	outputPath string
}

// NewD3Visualizer creates a visualizer writing to the given path.
func NewD3Visualizer(outputPath string) *D3Visualizer {
	return &D3Visualizer{
		outputPath: outputPath,
	}
}

// Visualize writes the HTML page for one graph.
func (v *D3Visualizer) Visualize(graph *kg.KnowledgeGraphData) error {
	dir := filepath.Dir(v.outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create visualization directory")
	}

	graphData, err := json.Marshal(graph)
	if err != nil {
		return errors.Wrap(err, "failed to encode graph")
	}

	tmpl, err := template.New("graph").Parse(pageTemplate)
	if err != nil {
		return errors.Wrap(err, "failed to parse visualization template")
	}

	data := struct {
		GraphData template.JS
		NodeCount int
		EdgeCount int
	}{
		GraphData: template.JS(graphData),
		NodeCount: len(graph.Nodes),
		EdgeCount: len(graph.Edges),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return errors.Wrap(err, "failed to render visualization")
	}

	return os.WriteFile(v.outputPath, buf.Bytes(), 0644)
}
