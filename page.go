package main

const pageHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>BetterRest</title>
  {{if .ShareDescription}}
  <meta name="description" content="{{.ShareDescription}}">
  <meta property="og:description" content="{{.ShareDescription}}">
  {{end}}
  <style>
    body { font-family: system-ui, sans-serif; margin: 0; padding: 24px; max-width: 560px; box-sizing: border-box; }
    * { box-sizing: border-box; }
    h2 { margin-top: 0; font-weight: 600; }
    .err { color: #b00020; margin: 12px 0; padding: 10px; background: #ffebee; border-radius: 6px; }
    .mono { font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, "Liberation Mono", "Courier New", monospace; }
    .hint { color: #666; font-size: 0.9em; margin-top: 4px; }
    footer { margin-top: 40px; color: #666; font-size: 0.9em; text-align: center; }

    .form-section { margin-bottom: 18px; }
    .form-section-title { font-size: 1em; font-weight: 600; color: #222; margin-bottom: 8px; }
    .field input[type="number"], .field input[type="text"] { padding: 8px 10px; font-size: 1em; border: 1px solid #ccc; border-radius: 6px; width: 100%; max-width: 140px; }
    .field input:focus { outline: none; border-color: #1976d2; box-shadow: 0 0 0 2px rgba(25,118,210,0.2); }
    .time-row { display: flex; align-items: center; gap: 8px; flex-wrap: wrap; }
    .time-row input.time-value { max-width: 80px; }
    .time-picker-btn { padding: 6px 12px; font-size: 0.9em; background: #f5f5f5; border: 1px solid #ccc; border-radius: 6px; cursor: pointer; }
    .time-picker-btn:hover { background: #e8e8e8; }
    .overlay { position: fixed; inset: 0; background: rgba(0,0,0,0.4); display: none; align-items: center; justify-content: center; z-index: 1000; }
    .overlay.open { display: flex; }
    .modal { background: #fff; border-radius: 10px; padding: 20px; box-shadow: 0 4px 20px rgba(0,0,0,0.2); min-width: 240px; }
    .modal h3 { margin: 0 0 14px 0; font-size: 1em; font-weight: 600; }
    .time-picker-row { display: flex; gap: 12px; align-items: center; margin-bottom: 16px; }
    .time-picker-row select { padding: 8px 10px; font-size: 1em; border: 1px solid #ccc; border-radius: 6px; }
    .modal-actions { display: flex; gap: 8px; justify-content: flex-end; }
    .modal-actions button { padding: 8px 16px; border-radius: 6px; border: 1px solid #ccc; background: #f5f5f5; cursor: pointer; font-size: 0.95em; }
    .modal-actions button.primary { background: #1976d2; color: #fff; border-color: #1976d2; }
    .modal-actions button.primary:hover { background: #1565c0; }
    .alert-message { font-size: 1.4em; margin: 0 0 16px 0; }
    .form-actions { padding-top: 16px; border-top: 1px solid #e0e0e0; }
    button[type="submit"] { padding: 10px 20px; font-size: 1em; font-weight: 500; background: #1976d2; color: #fff; border: none; border-radius: 6px; cursor: pointer; }
    button[type="submit"]:hover { background: #1565c0; }
  </style>
</head>
<body>
  <h2>BetterRest</h2>

  <form method="POST" action="/calc">
    <div class="form-section field">
      <div class="form-section-title">When do you want to wake up?</div>
      <div class="time-row">
        <input id="wake" name="wake" type="text" class="time-value" value="{{.Wake}}" placeholder="07:00" pattern="[0-9]{1,2}:[0-9]{2}" required autocomplete="off" aria-label="Wake up time">
        <button type="button" class="time-picker-btn" data-for="wake" aria-label="Pick time">Pick</button>
      </div>
    </div>

    <div class="form-section field">
      <div class="form-section-title">Desired amount of sleep</div>
      <input id="sleep" name="sleep" type="number" min="{{.SleepMin}}" max="{{.SleepMax}}" step="{{.SleepStep}}" value="{{.Sleep}}" aria-label="Desired amount of sleep in hours">
      {{if .SleepLabel}}<div class="hint">{{.SleepLabel}}</div>{{end}}
    </div>

    <div class="form-section field">
      <div class="form-section-title">Daily coffee intake</div>
      <input id="coffee" name="coffee" type="number" min="{{.CoffeeMin}}" max="{{.CoffeeMax}}" step="1" value="{{.Coffee}}" aria-label="Daily coffee intake in cups">
      {{if .CoffeeLabel}}<div class="hint">{{.CoffeeLabel}}</div>{{end}}
    </div>

    <div class="form-actions">
      <button type="submit">Calculate</button>
    </div>
  </form>

  {{if .Error}}<div class="err">{{.Error}}</div>{{end}}

  {{with .Alert}}
  <div id="alert-overlay" class="overlay open" role="alertdialog" aria-modal="true" aria-labelledby="alert-title">
    <div class="modal">
      <h3 id="alert-title">{{.Title}}</h3>
      <p class="alert-message mono">{{.Message}}</p>
      <div class="modal-actions">
        <button type="button" id="alert-close" class="primary">Close</button>
      </div>
    </div>
  </div>
  {{end}}

  <div id="time-picker-overlay" class="overlay" role="dialog" aria-modal="true" aria-label="Pick time (24h)">
    <div class="modal">
      <h3>Time (24h)</h3>
      <div class="time-picker-row">
        <label for="tp-hour">Hour</label>
        <select id="tp-hour"></select>
        <label for="tp-minute">Min</label>
        <select id="tp-minute"></select>
      </div>
      <div class="modal-actions">
        <button type="button" id="tp-cancel">Cancel</button>
        <button type="button" id="tp-ok" class="primary">OK</button>
      </div>
    </div>
  </div>

  <script>
(function() {
  var alertOverlay = document.getElementById('alert-overlay');
  if (alertOverlay) {
    document.getElementById('alert-close').addEventListener('click', function() {
      alertOverlay.classList.remove('open');
    });
  }

  var overlay = document.getElementById('time-picker-overlay');
  var hourSelect = document.getElementById('tp-hour');
  var minuteSelect = document.getElementById('tp-minute');
  var targetInput = null;

  function pad2(n) { return (n < 10 ? '0' : '') + n; }
  function parseTime(s) {
    var m = (s || '').trim().match(/^(\d{1,2}):(\d{2})$/);
    if (!m) return { h: 7, m: 0 };
    var h = parseInt(m[1], 10), min = parseInt(m[2], 10);
    if (h > 23 || min > 59) return { h: 7, m: 0 };
    return { h: h, m: min };
  }
  function fill(sel, n) {
    for (var i = 0; i < n; i++) {
      var o = document.createElement('option');
      o.value = i;
      o.textContent = pad2(i);
      sel.appendChild(o);
    }
  }
  fill(hourSelect, 24);
  fill(minuteSelect, 60);

  function openPicker(inputId) {
    targetInput = document.getElementById(inputId);
    if (!targetInput) return;
    var t = parseTime(targetInput.value);
    hourSelect.value = t.h;
    minuteSelect.value = t.m;
    overlay.classList.add('open');
    hourSelect.focus();
  }
  function closePicker() {
    overlay.classList.remove('open');
    targetInput = null;
  }
  function applyTime() {
    if (!targetInput) return;
    targetInput.value = pad2(parseInt(hourSelect.value, 10)) + ':' + pad2(parseInt(minuteSelect.value, 10));
    closePicker();
  }

  document.querySelectorAll('.time-picker-btn').forEach(function(btn) {
    btn.addEventListener('click', function() { openPicker(btn.getAttribute('data-for')); });
  });
  document.getElementById('tp-ok').addEventListener('click', applyTime);
  document.getElementById('tp-cancel').addEventListener('click', closePicker);
  overlay.addEventListener('click', function(e) {
    if (e.target === overlay) closePicker();
  });
  document.addEventListener('keydown', function(e) {
    if (e.key === 'Escape') {
      closePicker();
      if (alertOverlay) alertOverlay.classList.remove('open');
    }
    if (e.key === 'Enter' && overlay.classList.contains('open')) { e.preventDefault(); applyTime(); }
  });
})();
  </script>

  <footer>betterrest v{{.Version}}</footer>
</body>
</html>`
