// Package artifact writes model-authored HTML visualizations with warehouse data
// injected as window.DATA and serves them on localhost.
package artifact

import (
	"encoding/json"
	"strings"

	"github.com/habiliai/dataagent/errors"
)

// DataScript returns the script tag that defines window.DATA.
func DataScript(data any) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", errors.Wrapf(err, "failed to encode artifact data")
	}
	return "<script>window.DATA = " + string(payload) + ";</script>\n", nil
}

// InjectData places the data script before </head>, else right after <body>,
// else before the first <script>, else at the top of the document.
func InjectData(html string, data any) (string, error) {
	script, err := DataScript(data)
	if err != nil {
		return "", err
	}

	switch {
	case strings.Contains(html, "</head>"):
		return strings.Replace(html, "</head>", script+"</head>", 1), nil
	case strings.Contains(html, "<body>"):
		return strings.Replace(html, "<body>", "<body>\n"+script, 1), nil
	case strings.Contains(html, "<script>"):
		return strings.Replace(html, "<script>", script+"<script>", 1), nil
	default:
		return script + html, nil
	}
}
