package search

import "net/http"

const landingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Saved AI Search</title>
<style>
  *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #0f172a; color: #e2e8f0; min-height: 100vh; display: flex; justify-content: center; padding: 3rem 0; }
  .card { max-width: 680px; width: 90%; background: #1e293b; border-radius: 12px; padding: 2.5rem; box-shadow: 0 25px 50px rgba(0,0,0,0.4); align-self: flex-start; }
  h1 { font-size: 1.75rem; margin-bottom: 0.5rem; color: #f8fafc; }
  .subtitle { color: #94a3b8; margin-bottom: 1.75rem; }
  .section { margin-bottom: 1.5rem; }
  .section-title { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.1em; color: #64748b; margin-bottom: 0.5rem; }
  a { color: #38bdf8; text-decoration: none; }
  a:hover { text-decoration: underline; }
  input[type="search"] { width: 100%; padding: 0.75rem 1rem; font-size: 1rem; color: #f8fafc; background: #0f172a; border: 1px solid #334155; border-radius: 8px; outline: none; }
  input[type="search"]:focus { border-color: #38bdf8; }
  input[type="search"]::selection { background: #1d4ed8; color: #f8fafc; }
  .hint { font-size: 0.8rem; color: #64748b; margin-top: 0.5rem; }
  .status { font-size: 0.85rem; color: #94a3b8; margin-top: 0.75rem; min-height: 1.2em; }
  .result { border-top: 1px solid #334155; padding: 1rem 0; }
  .result h2 { font-size: 1.05rem; margin-bottom: 0.25rem; }
  .result .meta { font-size: 0.8rem; color: #64748b; margin-bottom: 0.4rem; }
  .result p { font-size: 0.9rem; color: #cbd5e1; line-height: 1.5; }
  .endpoint { font-family: "SF Mono", Menlo, monospace; font-size: 0.9rem; color: #a5b4fc; }
  .dot { display: inline-block; width: 8px; height: 8px; background: #22c55e; border-radius: 50%; margin-right: 0.5rem; }
</style>
</head>
<body>
<div class="card">
  <h1>Saved AI Search</h1>
  <p class="subtitle">Semantic search over the publication library, with predictive query completion.</p>

  <div class="section">
    <input id="query" type="search" placeholder="Search publications..." autocomplete="off" autofocus>
    <p class="hint">Suggestions appear inline as selected text. Tab or right arrow accepts, Escape reverts, Enter searches.</p>
    <p id="status" class="status"></p>
    <div id="results"></div>
  </div>

  <div class="section">
    <div class="section-title">Endpoints</div>
    <p><span class="dot"></span><span class="endpoint">/search/search?query=</span></p>
    <p><span class="dot"></span><span class="endpoint">/search/search/predict?partial_query=</span></p>
    <p><span class="dot"></span><a href="/health" class="endpoint">/health</a></p>
  </div>
</div>

<script>
(function () {
  var input = document.getElementById("query");
  var statusEl = document.getElementById("status");
  var resultsEl = document.getElementById("results");

  var DEBOUNCE_MS = 150;
  var MIN_PREFIX = 2;

  var typed = "";            // text the user actually entered
  var debounceTimer = null;
  var predictController = null;
  var searchController = null;
  var lastSearched = null;

  input.addEventListener("input", function () {
    typed = input.value;
    if (debounceTimer) clearTimeout(debounceTimer);
    if (typed.trim().length < MIN_PREFIX) {
      if (predictController) predictController.abort();
      return;
    }
    debounceTimer = setTimeout(predict, DEBOUNCE_MS);
  });

  input.addEventListener("keydown", function (e) {
    var hasSelection = input.selectionEnd > input.selectionStart;
    if (e.key === "Tab" && hasSelection) {
      e.preventDefault();
      accept();
    } else if (e.key === "ArrowRight" && hasSelection) {
      accept();
    } else if (e.key === "Escape") {
      input.value = typed;
      input.setSelectionRange(typed.length, typed.length);
    } else if (e.key === "Enter") {
      e.preventDefault();
      accept();
      search();
    }
  });

  function accept() {
    typed = input.value;
    input.setSelectionRange(typed.length, typed.length);
  }

  function predict() {
    if (predictController) predictController.abort();
    predictController = new AbortController();
    var prefix = typed;
    fetch("/search/search/predict?partial_query=" + encodeURIComponent(prefix), { signal: predictController.signal })
      .then(function (resp) { return resp.ok ? resp.json() : null; })
      .then(function (data) { if (data) apply(prefix, data.predictions || []); })
      .catch(function (err) { /* canceled predictions are expected */ });
  }

  function apply(prefix, predictions) {
    // Stale response: the user kept typing after this prediction was issued
    if (typed !== prefix) return;
    var best = null;
    for (var i = 0; i < predictions.length; i++) {
      var p = predictions[i];
      if (p.length > prefix.length && p.toLowerCase().indexOf(prefix.toLowerCase()) === 0) {
        best = p;
        break;
      }
    }
    if (!best) return;
    input.value = prefix + best.slice(prefix.length);
    input.setSelectionRange(prefix.length, input.value.length);
  }

  function search() {
    var query = input.value.trim();
    if (!query || query === lastSearched) return;
    if (searchController) searchController.abort();
    searchController = new AbortController();
    statusEl.textContent = "Searching...";
    fetch("/search/search?query=" + encodeURIComponent(query), { signal: searchController.signal })
      .then(function (resp) {
        if (!resp.ok) throw new Error("status " + resp.status);
        return resp.json();
      })
      .then(function (data) {
        lastSearched = query;
        render(data);
      })
      .catch(function (err) {
        if (err.name === "AbortError") return;
        statusEl.textContent = "Search failed. Please try again.";
      });
  }

  function render(data) {
    resultsEl.textContent = "";
    var results = data.results || [];
    statusEl.textContent = results.length === 0
      ? "No matches. Try broader terms."
      : results.length + " result" + (results.length === 1 ? "" : "s");
    results.forEach(function (r) {
      var div = document.createElement("div");
      div.className = "result";

      var h2 = document.createElement("h2");
      var link = document.createElement("a");
      link.href = r.url;
      link.textContent = r.title || r.url;
      h2.appendChild(link);
      div.appendChild(h2);

      var metaParts = [];
      if (r.authors && r.authors.length) metaParts.push(r.authors.join(", "));
      if (r.doi) metaParts.push("doi:" + r.doi);
      metaParts.push("score " + r.score.toFixed(2));
      var meta = document.createElement("div");
      meta.className = "meta";
      meta.textContent = metaParts.join(" | ");
      div.appendChild(meta);

      if (r.summary) {
        var p = document.createElement("p");
        p.textContent = r.summary;
        div.appendChild(p);
      }
      resultsEl.appendChild(div);
    });
  }
})();
</script>
</body>
</html>`

// NewLandingHandler returns an HTTP handler that serves the landing page at /.
func NewLandingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(landingHTML))
	}
}
