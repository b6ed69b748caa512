package server

import "html/template"

// Templates are embedded strings so the binary stays self-contained.
var (
	formTemplate = template.Must(template.New("form").Parse(formHTML))
	jobTemplate  = template.Must(template.New("job").Parse(jobHTML))
)

const pageStyle = `<style>
  body { font-family: system-ui, sans-serif; max-width: 46rem; margin: 2rem auto; padding: 0 1rem; color: #222; }
  h1 { font-size: 1.6rem; }
  label { display: block; margin-top: .8rem; font-weight: 600; }
  input[type=text], input[type=number], select { width: 100%; padding: .4rem; margin-top: .2rem; }
  fieldset { margin-top: .8rem; border: 1px solid #ccc; }
  button { margin-top: 1.2rem; padding: .6rem 1.4rem; font-size: 1rem; cursor: pointer; }
  progress { width: 100%; height: 1.2rem; }
  .stage { color: #555; font-style: italic; }
  .error { color: #a00; }
  table { width: 100%; border-collapse: collapse; margin-top: 1rem; }
  td, th { text-align: left; padding: .3rem .5rem; border-bottom: 1px solid #eee; }
</style>`

const formHTML = `<!doctype html>
<html><head><meta charset="utf-8"><title>fablecast</title>` + pageStyle + `</head>
<body>
<h1>fablecast · kids story videos</h1>
<form method="post" action="/generate">
  <label>Title
    <input type="text" name="title" value="{{.Params.Title}}" required>
  </label>
  <label>Theme
    <input type="text" name="theme" value="{{.Params.Theme}}">
  </label>
  <label>Moral
    <select name="moral">
      {{range .Morals}}<option value="{{.}}" {{if eq . $.Params.Moral}}selected{{end}}>{{.}}</option>{{end}}
    </select>
  </label>
  <label>Age
    <input type="number" name="age" min="{{.MinAge}}" max="{{.MaxAge}}" value="{{.Params.Age}}">
  </label>
  <label>Length (minutes)
    <input type="number" name="minutes" min="{{.MinMinutes}}" max="{{.MaxMinutes}}" value="{{.Params.Minutes}}">
  </label>
  <label>Scenes
    <input type="number" name="scenes" min="{{.MinScenes}}" max="{{.MaxScenes}}" value="{{.Params.Scenes}}">
  </label>
  <label>Story engine
    <select name="story_engine">
      {{range .StoryEngines}}<option value="{{.}}">{{.}}</option>{{end}}
    </select>
  </label>
  <label>Narration engine
    <select name="tts_engine">
      {{range .TTSEngines}}<option value="{{.}}">{{.}}</option>{{end}}
    </select>
  </label>
  <label>Voice (optional)
    <input type="text" name="voice" placeholder="en_US-amy-low">
  </label>
  <fieldset>
    <legend>Platforms</legend>
    {{range .Platforms}}
    <label><input type="checkbox" name="platforms" value="{{.Name}}" checked> {{.Name}} ({{.Width}}x{{.Height}})</label>
    {{end}}
  </fieldset>
  <button type="submit">Generate</button>
</form>

{{if .Recent}}
<h2>Recent renders</h2>
<table>
  <tr><th>Title</th><th>When</th><th>Took</th><th>Outputs</th></tr>
  {{range .Recent}}
  <tr>
    <td>{{.Title}}</td>
    <td>{{.CreatedAt.Format "Jan 2 15:04"}}</td>
    <td>{{printf "%.0fs" .Seconds}}</td>
    <td>{{len .Outputs}}</td>
  </tr>
  {{end}}
</table>
{{end}}
</body></html>`

const jobHTML = `<!doctype html>
<html><head><meta charset="utf-8"><title>fablecast · {{.Job.Title}}</title>` + pageStyle + `</head>
<body>
<h1>{{.Job.Title}}</h1>
<p>Job <code>{{.Job.ID}}</code> · <span id="status">{{.Status}}</span></p>
{{if .Err}}<p class="error">{{.Err}}</p>{{end}}
<progress id="bar" value="{{.Frac}}" max="1"></progress>
<p class="stage" id="stage"></p>
<ul id="outputs">
  {{range .Outputs}}<li><a href="/outputs/{{.}}">{{.}}</a></li>{{end}}
</ul>
<p><a href="/">&larr; back</a></p>
<script>
  const src = new EventSource("/events/{{.Job.ID}}");
  src.addEventListener("progress", (e) => {
    const ev = JSON.parse(e.data);
    document.getElementById("bar").value = ev.frac;
    document.getElementById("stage").textContent = ev.stage + ": " + ev.message;
  });
  src.addEventListener("done", () => { src.close(); location.reload(); });
</script>
</body></html>`
