package browser

// bindingName is the window function the page calls with each input event.
const bindingName = "__vindEvent"

// listenerScript installs the input listeners. It runs on every new
// document and once on the current one. Element identities travel as index
// paths, computed exactly like document.IndexPath.
const listenerScript = `(() => {
  if (window.__vindInstalled) return;
  window.__vindInstalled = true;
  window.__vindVersion = 0;
  window.__vindCapture = false;

  const step = (el) => {
    const p = el.parentNode;
    const tag = el.localName;
    if (!p || !p.children) return tag;
    let idx = 0, total = 0;
    for (const s of p.children) {
      if (s.localName === tag) {
        total++;
        if (s === el) idx = total;
      }
    }
    return total > 1 ? tag + '[' + idx + ']' : tag;
  };
  const indexPath = (el) => {
    const parts = [];
    for (let c = el; c && c.nodeType === 1; c = c.parentNode) parts.unshift(step(c));
    return '/' + parts.join('/');
  };
  const under = (e) => document.elementsFromPoint(e.clientX, e.clientY)
    .filter((el) => el.id !== '__vind_overlay')
    .map(indexPath);
  const send = (ev) => {
    ev.version = window.__vindVersion;
    const fn = window['` + bindingName + `'];
    if (fn) fn(ev);
  };

  const isOverlay = (n) => n && n.id === '__vind_overlay';
  new MutationObserver((ms) => {
    const real = ms.some((m) => !isOverlay(m.target) &&
      ![...m.addedNodes, ...m.removedNodes].some(isOverlay));
    if (real) window.__vindVersion++;
  }).observe(document, { subtree: true, childList: true, attributes: true, characterData: true });

  document.addEventListener('mousemove', (e) => send({ type: 'move', targets: under(e) }), true);
  document.addEventListener('click', (e) => {
    if (window.__vindCapture) {
      e.preventDefault();
      e.stopPropagation();
    }
    send({ type: 'click', targets: under(e) });
  }, true);
  const key = (type) => (e) => {
    const t = document.activeElement;
    send({ type: type, key: e.key, target: t && t !== document.body ? indexPath(t) : '' });
  };
  document.addEventListener('keydown', key('keydown'), true);
  document.addEventListener('keyup', key('keyup'), true);
})();`

// overlayID marks the overlay element, which snapshots drop.
const overlayID = "__vind_overlay"

// showOverlayJS draws the target overlay over the element at an index path.
const showOverlayJS = `(path) => {
  const el = document.evaluate(path, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
  let o = document.getElementById('__vind_overlay');
  if (!el) {
    if (o) o.remove();
    return false;
  }
  if (!o) {
    o = document.createElement('div');
    o.id = '__vind_overlay';
    o.style.cssText = 'position:fixed;pointer-events:none;z-index:2147483647;' +
      'border:2px solid #e8590c;background:rgba(232,89,12,0.15);border-radius:3px;';
    document.documentElement.appendChild(o);
  }
  const r = el.getBoundingClientRect();
  o.style.left = r.left + 'px';
  o.style.top = r.top + 'px';
  o.style.width = r.width + 'px';
  o.style.height = r.height + 'px';
  return true;
}`

const hideOverlayJS = `() => {
  const o = document.getElementById('__vind_overlay');
  if (o) o.remove();
}`

const setCaptureJS = `(on) => { window.__vindCapture = on; }`

const outerHTMLJS = `() => document.documentElement.outerHTML`
