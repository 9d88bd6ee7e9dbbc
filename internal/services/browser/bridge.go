package browser

import (
	"encoding/json"
	"fmt"

	"github.com/ternarybob/soldby/internal/models"
	"github.com/ternarybob/soldby/internal/services/scanner"
)

// bridgeTemplate installs window.__soldby on every new document. start stamps
// tracked elements with node keys, snapshots the page and begins observing;
// drain hands queued mutations to Go; annotate writes results back.
const bridgeTemplate = `(() => {
  if (window.__soldby) return;
  const tracked = %s;
  const attr = %s;
  const highlightClass = %s;
  const newKey = () => (window.crypto && crypto.randomUUID)
    ? crypto.randomUUID()
    : Math.random().toString(36).slice(2) + Date.now().toString(36);
  const stamp = (root) => {
    if (!root || root.nodeType !== 1) return;
    if (root.matches(tracked) && !root.hasAttribute(attr)) root.setAttribute(attr, newKey());
    root.querySelectorAll(tracked).forEach((el) => {
      if (!el.hasAttribute(attr)) el.setAttribute(attr, newKey());
    });
  };
  const queue = { added: [], removed: [] };
  const observer = new MutationObserver((records) => {
    for (const record of records) {
      record.removedNodes.forEach((node) => {
        if (node.nodeType !== 1) return;
        if (node.hasAttribute(attr)) queue.removed.push(node.getAttribute(attr));
        node.querySelectorAll('[' + attr + ']').forEach((el) => queue.removed.push(el.getAttribute(attr)));
      });
      record.addedNodes.forEach((node) => {
        if (node.nodeType !== 1) return;
        stamp(node);
        queue.added.push(node.outerHTML);
      });
    }
  });
  window.__soldby = {
    start() {
      stamp(document.documentElement);
      const html = document.documentElement.outerHTML;
      observer.observe(document.body, { childList: true, subtree: true });
      return html;
    },
    drain() {
      const batch = JSON.stringify(queue);
      queue.added = [];
      queue.removed = [];
      return batch;
    },
    annotate(node, attrs, highlight) {
      const el = document.querySelector('[' + attr + '="' + node + '"]');
      if (!el) return false;
      for (const [name, value] of Object.entries(attrs)) el.setAttribute(name, value);
      if (highlight) el.classList.add(highlightClass);
      return true;
    },
  };
})();`

// BridgeScript returns the page script for the scanner's tracked selector
func BridgeScript() string {
	return fmt.Sprintf(bridgeTemplate,
		jsString(scanner.TrackedSelector()),
		jsString(scanner.AttrNode),
		jsString(scanner.HighlightClass),
	)
}

const (
	startExpression = `window.__soldby.start()`
	drainExpression = `window.__soldby ? window.__soldby.drain() : '{"added":[],"removed":[]}'`
)

// AnnotateExpression builds the call that writes product onto its live element
func AnnotateExpression(product models.Product) (string, error) {
	attrs, err := json.Marshal(scanner.Attributes(product))
	if err != nil {
		return "", fmt.Errorf("failed to encode annotation: %w", err)
	}
	return fmt.Sprintf("window.__soldby ? window.__soldby.annotate(%s, %s, %t) : false",
		jsString(product.NodeKey), attrs, product.Highlight), nil
}

// decodeBatch parses a drained mutation queue
func decodeBatch(raw string) (models.Mutation, error) {
	var batch models.Mutation
	if raw == "" {
		return batch, nil
	}
	if err := json.Unmarshal([]byte(raw), &batch); err != nil {
		return models.Mutation{}, fmt.Errorf("failed to decode mutation batch: %w", err)
	}
	return batch, nil
}

func jsString(s string) string {
	encoded, _ := json.Marshal(s)
	return string(encoded)
}
