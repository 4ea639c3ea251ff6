package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// The merge tool is a single self-contained HTML document. Base name, part
// count, and extension are baked in as literals so the tool needs no server:
// opened next to the downloaded parts, it fetches each part by its exact
// filename, concatenates the bytes in index order, and offers the result for
// local save.
var mergeToolTemplate = template.Must(template.New("mergetool").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Merge {{.MergedName}}</title>
</head>
<body>
<h3>Rebuild {{.MergedName}}</h3>
<p>Keep this file in the same folder as all {{.PartCount}} parts, then press the button.</p>
<button id="merge">Merge parts</button>
<p id="status"></p>
<script>
"use strict";
var parts = [{{range $i, $name := .PartNames}}{{if $i}}, {{end}}"{{$name}}"{{end}}];
var mergedName = "{{.MergedName}}";
var status = document.getElementById("status");

document.getElementById("merge").addEventListener("click", function () {
  var buffers = [];
  var chain = Promise.resolve();
  parts.forEach(function (name, i) {
    chain = chain.then(function () {
      status.textContent = "Reading part " + (i + 1) + " of " + parts.length + "...";
      return fetch(name).then(function (resp) {
        if (!resp.ok) { throw new Error("missing " + name); }
        return resp.arrayBuffer();
      }).then(function (buf) { buffers.push(buf); });
    });
  });
  chain.then(function () {
    var blob = new Blob(buffers);
    var link = document.createElement("a");
    link.href = URL.createObjectURL(blob);
    link.download = mergedName;
    link.click();
    status.textContent = "Done. Saved as " + mergedName + ".";
  }).catch(function (err) {
    status.textContent = "Merge failed: " + err.message + ". Make sure every part is in this folder.";
  });
});
</script>
</body>
</html>
`))

type mergeToolParams struct {
	MergedName string
	PartCount  int
	PartNames  []string
}

// WriteMergeTool renders the reconstruction tool for the given split into dir
// and returns its path.
func WriteMergeTool(dir, base, ext string, partCount int) (string, error) {
	names := make([]string, 0, partCount)
	for i := 1; i <= partCount; i++ {
		names = append(names, PartName(base, i, partCount, ext))
	}
	path := filepath.Join(dir, base+"_merge.html")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create merge tool: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	err = mergeToolTemplate.Execute(file, mergeToolParams{
		MergedName: MergedName(base, ext),
		PartCount:  partCount,
		PartNames:  names,
	})
	if err != nil {
		return "", fmt.Errorf("render merge tool: %w", err)
	}
	return path, nil
}
