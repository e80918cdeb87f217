package health

import (
	"bytes"
	"html/template"
)

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
  <meta charset="UTF-8">
  <title>Copro · État de l'API</title>
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <meta http-equiv="refresh" content="30">
  <style>
    :root { --ok: #15803d; --ko: #b45309; --dark: #1e293b; --muted: #64748b; }
    body { font-family: system-ui, sans-serif; background: #f8fafc; color: var(--dark); margin: 0; padding: 40px 20px; }
    main { max-width: 860px; margin: 0 auto; }
    h1 { font-size: 22px; margin: 0 0 6px; }
    .status { font-weight: 700; color: {{if eq .Status "ok"}}var(--ok){{else}}var(--ko){{end}}; }
    .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(240px, 1fr)); gap: 16px; margin-top: 24px; }
    .card { background: #fff; border-radius: 14px; padding: 20px; box-shadow: 0 4px 20px rgba(0,0,0,0.05); }
    .card h2 { font-size: 13px; text-transform: uppercase; letter-spacing: .05em; color: var(--muted); margin: 0 0 12px; }
    .row { display: flex; justify-content: space-between; padding: 4px 0; font-size: 14px; }
    footer { margin-top: 24px; font-size: 13px; color: var(--muted); }
    a { color: inherit; }
  </style>
</head>
<body>
<main>
  <h1>Copro · État de l'API</h1>
  <div class="status">{{if eq .Status "ok"}}Tous les services sont opérationnels{{else}}Incident en cours{{end}}</div>
  <div class="grid">
    <section class="card">
      <h2>Trafic</h2>
      <div class="row"><span>Requêtes</span><span>{{.Traffic.TotalRequests}}</span></div>
      <div class="row"><span>Erreurs</span><span>{{.Traffic.FailedCount}}</span></div>
      <div class="row"><span>Taux de succès</span><span>{{.Traffic.SuccessRate}}%</span></div>
      <div class="row"><span>Temps moyen</span><span>{{.Traffic.AvgResponseTime}} ms</span></div>
      {{with .Traffic.LastRequest}}<div class="row"><span>Dernière requête</span><span>{{index . "method"}} {{index . "path"}}</span></div>{{end}}
    </section>
    <section class="card">
      <h2>Dépendances</h2>
      {{range $name, $dep := .Dependencies}}<div class="row"><span>{{$name}}</span><span>{{$dep.Status}}{{with $dep.PingMs}} ({{.}} ms){{end}}</span></div>
      {{end}}
    </section>
    <section class="card">
      <h2>Processus</h2>
      <div class="row"><span>Uptime</span><span>{{.Runtime.UptimeSeconds}} s</span></div>
      <div class="row"><span>Mémoire</span><span>{{.Runtime.Memory.AllocMB}} Mo</span></div>
      <div class="row"><span>Goroutines</span><span>{{.Runtime.Goroutines}}</span></div>
      <div class="row"><span>Plateforme</span><span>{{.Runtime.Platform}}</span></div>
      <div class="row"><span>Go</span><span>{{.Runtime.GoVersion}}</span></div>
    </section>
  </div>
  <footer><a href="/health/json">/health/json</a> · <a href="/health/errors">/health/errors</a></footer>
</main>
</body>
</html>
`))

// RenderDashboardHTML returns the HTML status page served on GET /.
func RenderDashboardHTML(health CollectResult) string {
	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, health); err != nil {
		return "<!DOCTYPE html><p>" + template.HTMLEscapeString(err.Error()) + "</p>"
	}
	return buf.String()
}
