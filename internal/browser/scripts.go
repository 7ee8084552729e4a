package browser

import (
	"encoding/json"
	"fmt"

	"github.com/polzovatel/navshot/internal/capture"
)

const (
	quietMs    = 300
	pinnedAttr = "data-navshot-pinned"
)

// stableDOMScript resolves once the body saw no mutation for quiet ms.
const stableDOMScript = `
	(quiet) => {
		return new Promise((resolve) => {
			let timeoutId;
			const observer = new MutationObserver(() => {
				clearTimeout(timeoutId);
				timeoutId = setTimeout(() => {
					observer.disconnect();
					resolve();
				}, quiet);
			});
			observer.observe(document.body, {
				childList: true,
				subtree: true,
				attributes: true,
				attributeOldValue: false
			});
			timeoutId = setTimeout(() => {
				observer.disconnect();
				resolve();
			}, quiet);
		});
	}
`

const imagesCompleteScript = `
	() => Array.from(document.images).every((img) => img.complete)
`

const metricsScript = `
	() => {
		const body = document.body;
		const doc = document.documentElement;
		const bottoms = [];
		for (const el of document.querySelectorAll('body *')) {
			const rect = el.getBoundingClientRect();
			if (rect.height > 0) {
				bottoms.push(rect.bottom + window.scrollY);
			}
		}
		return {
			bodyScrollHeight: body ? body.scrollHeight : 0,
			bodyOffsetHeight: body ? body.offsetHeight : 0,
			docScrollHeight: doc.scrollHeight,
			docOffsetHeight: doc.offsetHeight,
			elementBottoms: bottoms,
		};
	}
`

const pinFixedScript = `
	(attr) => {
		for (const el of document.querySelectorAll('body *')) {
			if (getComputedStyle(el).position !== 'fixed') {
				continue;
			}
			const rect = el.getBoundingClientRect();
			el.setAttribute(attr, el.getAttribute('style') || '');
			el.style.position = 'absolute';
			el.style.top = (rect.top + window.scrollY) + 'px';
			el.style.left = (rect.left + window.scrollX) + 'px';
		}
	}
`

const unpinFixedScript = `
	(attr) => {
		for (const el of document.querySelectorAll('[' + attr + ']')) {
			const style = el.getAttribute(attr);
			if (style) {
				el.setAttribute('style', style);
			} else {
				el.removeAttribute('style');
			}
			el.removeAttribute(attr);
		}
	}
`

// decodeMetrics converts the object returned by metricsScript.
func decodeMetrics(v interface{}) (capture.Metrics, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return capture.Metrics{}, fmt.Errorf("marshal metrics: %w", err)
	}
	var m capture.Metrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return capture.Metrics{}, fmt.Errorf("decode metrics: %w", err)
	}
	return m, nil
}
