package api

// docsHTML renders the OpenAPI reference with a link to the progress stream notes.
const docsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="referrer" content="same-origin" />
  <meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no" />
  <title>Route Export Controller API</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
</head>
<body style="height: 100vh; margin: 0; position: relative;">
  <a href="/docs/events" style="position: fixed; top: 12px; right: 16px; z-index: 9999; background: #161b22; border: 1px solid #30363d; border-radius: 6px; color: #58a6ff; font-family: sans-serif; font-size: 12px; padding: 5px 12px; text-decoration: none;">Run progress streams</a>
  <elements-api
    apiDescriptionUrl="/openapi.json"
    router="hash"
    layout="sidebar"
    tryItCredentialsPolicy="same-origin"
    darkMode
  />
</body>
</html>`

// eventsDocsHTML documents the SSE and WebSocket progress feeds, which are
// plain handlers and so absent from the OpenAPI document.
const eventsDocsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Run progress streams</title>
  <style>
    body { margin: 0 auto; max-width: 860px; padding: 24px; background: #0d1117; color: #c9d1d9;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; font-size: 14px; line-height: 1.65; }
    a { color: #58a6ff; }
    h1, h2 { color: #e6edf3; font-weight: 600; }
    code, pre { background: #161b22; border: 1px solid #30363d; border-radius: 6px; }
    code { padding: 1px 5px; }
    pre { padding: 12px 16px; overflow-x: auto; }
    table { border-collapse: collapse; }
    td, th { border: 1px solid #30363d; padding: 4px 10px; text-align: left; }
  </style>
</head>
<body>
  <p><a href="/docs">&larr; API reference</a></p>
  <h1>Run progress streams</h1>
  <p>While a batch runs, the controller publishes progress on two feeds.
  Both endpoints accept <code>?feeds=run,vehicle</code> to limit what is sent.
  A client that cannot keep up loses events; the batch never waits for it.</p>

  <table>
    <tr><th>Feed</th><th>Payload</th></tr>
    <tr><td><code>run</code></td><td><code>{run_id, phase, vehicles, summary}</code>; phase is <code>started</code>, <code>finished</code> or <code>failed</code></td></tr>
    <tr><td><code>vehicle</code></td><td>one vehicle result: <code>{run_id, vehicle, status, code, error, internal_id, file, started_at, finished_at}</code></td></tr>
  </table>

  <h2>Server-sent events</h2>
  <pre>curl -N http://127.0.0.1:8190/api/v1/runs/events?feeds=vehicle</pre>
  <p>Each event is named after its feed:</p>
  <pre>event: vehicle
data: {"run_id":"...","vehicle":"ABC123","status":"ok","file":"/downloads/ABC123_101_20240314.csv",...}</pre>

  <h2>WebSocket</h2>
  <pre>websocat ws://127.0.0.1:8190/api/v1/runs/ws</pre>
  <p>Each text frame wraps one event:</p>
  <pre>{"feed":"run","data":{"run_id":"...","phase":"started","vehicles":12}}</pre>
</body>
</html>`
