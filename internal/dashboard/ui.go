package dashboard

import "net/http"

// handleUI serves the embedded single-page front end.
func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(htmlUI))
}

const htmlUI = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>bundlescope</title>
<style>
  body { font-family: system-ui, sans-serif; margin: 0; background: #14161a; color: #e8e8e8; }
  header { padding: 12px 20px; background: #1d2026; display: flex; gap: 20px; align-items: baseline; }
  header h1 { font-size: 18px; margin: 0; }
  nav a { color: #8ab4f8; margin-right: 12px; cursor: pointer; text-decoration: none; }
  main { padding: 20px; }
  table { border-collapse: collapse; width: 100%; }
  th, td { text-align: left; padding: 6px 10px; border-bottom: 1px solid #2a2e36; }
  .gallery { display: flex; flex-wrap: wrap; gap: 12px; }
  .gallery .card { background: #1d2026; padding: 8px; border-radius: 6px; width: 140px; text-align: center; }
  .gallery img { max-width: 128px; max-height: 128px; image-rendering: pixelated; }
  .badge { font-size: 11px; padding: 1px 6px; border-radius: 8px; background: #2a2e36; }
  #log { font-family: monospace; font-size: 12px; color: #9aa0a6; white-space: pre-wrap; }
</style>
</head>
<body>
<header>
  <h1>bundlescope</h1>
  <nav>
    <a onclick="show('dashboard')">Dashboard</a>
    <a onclick="show('runs')">Runs</a>
    <a onclick="show('config')">Config</a>
  </nav>
</header>
<main id="main">Loading…</main>
<script>
const main = document.getElementById('main');
const get = (url) => fetch(url).then(r => r.json());

async function show(page, arg) {
  if (page === 'dashboard') {
    const s = await get('/api/status');
    const kinds = Object.entries(s.summary.by_kind || {})
      .map(([k, n]) => '<tr><td>' + k + '</td><td>' + n + '</td></tr>').join('');
    main.innerHTML = '<h2>Overview</h2>' +
      '<p>' + s.summary.runs + ' runs, ' + s.summary.entities + ' entities. Version ' + s.version + '.</p>' +
      '<table><tr><th>Kind</th><th>Entities</th></tr>' + kinds + '</table>' +
      '<h3>Live progress</h3><div id="log"></div>';
  } else if (page === 'runs') {
    const data = await get('/api/runs');
    const rows = data.runs.map(r =>
      '<tr><td><a onclick="show(\'run\', \'' + r.id + '\')">' + r.id.slice(0, 8) + '</a></td>' +
      '<td>' + r.source + '</td><td>' + r.status + '</td>' +
      '<td>' + new Date(r.started_at).toLocaleString() + '</td>' +
      '<td>' + r.exported_sprites + '</td></tr>').join('');
    main.innerHTML = '<h2>Runs</h2><table><tr><th>Run</th><th>Source</th><th>Status</th><th>Started</th><th>Sprites</th></tr>' + rows + '</table>';
  } else if (page === 'run') {
    const [run, entities, gallery] = await Promise.all([
      get('/api/runs/' + arg),
      get('/api/runs/' + arg + '/entities'),
      get('/api/runs/' + arg + '/gallery')]);
    const rows = entities.entities.map(e =>
      '<tr><td><span class="badge">' + e.kind + '</span></td><td>' + e.name + '</td>' +
      '<td>' + (e.display_name || '') + '</td><td>' + e.confidence.toFixed(2) + '</td>' +
      '<td>' + (e.sprite ? e.sprite.method : '—') + '</td></tr>').join('');
    const cards = gallery.items.map(i =>
      '<div class="card"><img src="' + (i.thumb_url || i.url) + '" alt="' + i.name + '">' +
      '<div>' + i.name + '</div><span class="badge">' + i.kind + '</span></div>').join('');
    main.innerHTML = '<h2>Run ' + run.id.slice(0, 8) + ' (' + run.status + ')</h2>' +
      '<p>' + run.collections + ' collections, ' + run.objects + ' objects, ' +
      run.skipped_textures + ' textures skipped.</p>' +
      '<table><tr><th>Kind</th><th>Name</th><th>Display</th><th>Conf.</th><th>Match</th></tr>' + rows + '</table>' +
      '<h3>Gallery</h3><div class="gallery">' + cards + '</div>';
  } else if (page === 'config') {
    const p = await get('/api/profile');
    const rows = Object.entries(p.classifiers).map(([k, c]) =>
      '<tr><td>' + k + '</td>' +
      '<td><input type="checkbox" data-kind="' + k + '" ' + (c.enabled ? 'checked' : '') + '></td>' +
      '<td><input type="number" min="0" max="1" step="0.05" data-conf="' + k + '" value="' + c.min_confidence + '"></td></tr>').join('');
    main.innerHTML = '<h2>Config</h2>' +
      '<table><tr><th>Classifier</th><th>Enabled</th><th>Min confidence</th></tr>' + rows + '</table>' +
      '<p><button onclick="saveConfig()">Save</button> ' +
      p.sources.map(s => '<button onclick="extract(\'' + s + '\')">Extract ' + s + '</button>').join(' ') + '</p>';
  }
}

async function saveConfig() {
  const classifiers = {};
  document.querySelectorAll('[data-kind]').forEach(el => {
    classifiers[el.dataset.kind] = { enabled: el.checked };
  });
  document.querySelectorAll('[data-conf]').forEach(el => {
    classifiers[el.dataset.conf].min_confidence = parseFloat(el.value);
  });
  await fetch('/api/profile', { method: 'PUT', body: JSON.stringify({ classifiers }) });
  show('config');
}

async function extract(source) {
  await fetch('/api/extract', { method: 'POST', body: JSON.stringify({ source }) });
  show('runs');
}

const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
ws.onmessage = (ev) => {
  const log = document.getElementById('log');
  if (log) log.textContent += ev.data + '\n';
};

show('dashboard');
</script>
</body>
</html>
`
