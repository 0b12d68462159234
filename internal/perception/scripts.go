// File: internal/perception/scripts.go
package perception

// In-page collection scripts. Each returns a plain JSON value so the result
// can be decoded directly from the evaluator.

const complexityScript = `
(() => {
  const domSize = document.all.length;
  const forms = document.forms.length;
  const interactive = document.querySelectorAll('button,input,select,textarea,a').length;
  const scripts = document.scripts.length;
  return {
    dom_size: domSize,
    forms: forms,
    interactive: interactive,
    scripts: scripts,
    score: domSize * 0.1 + interactive * 2 + forms * 5 + scripts * 1
  };
})()`

const countsScript = `
(() => ({
  clickable: document.querySelectorAll('button,input[type=button],input[type=submit],.btn,[role=button]').length,
  input: document.querySelectorAll('input,textarea,select').length,
  link: document.querySelectorAll('a[href]').length,
  form: document.querySelectorAll('form').length
}))()`

const interactiveElementsScript = `
(() => {
  const out = [];
  const nodes = document.querySelectorAll('button,a[href],input,select,textarea,[role=button],[onclick]');
  for (let i = 0; i < nodes.length && out.length < 50; i++) {
    const el = nodes[i];
    const rect = el.getBoundingClientRect();
    const style = window.getComputedStyle(el);
    const visible = rect.width > 0 && rect.height > 0 &&
      style.display !== 'none' && style.visibility !== 'hidden';
    let selector = el.tagName.toLowerCase();
    if (el.id) selector = '#' + el.id;
    else if (el.classList.length > 0) selector = '.' + el.classList[0];
    out.push({
      selector: selector,
      element_type: el.tagName.toLowerCase(),
      text: (el.innerText || el.value || '').trim().slice(0, 100),
      is_visible: visible,
      bounds: { x: rect.x, y: rect.y, width: rect.width, height: rect.height }
    });
  }
  return out;
})()`

const textBlocksScript = `
(() => {
  const out = [];
  const nodes = document.querySelectorAll('h1,h2,h3,h4,h5,h6,p,li,span,div');
  for (let i = 0; i < nodes.length && out.length < 40; i++) {
    const el = nodes[i];
    if (el.children.length > 0) continue;
    const text = (el.innerText || '').trim();
    if (text.length < 3) continue;
    const rect = el.getBoundingClientRect();
    if (rect.width === 0 || rect.height === 0) continue;
    const style = window.getComputedStyle(el);
    out.push({
      content: text.slice(0, 300),
      tag_name: el.tagName.toLowerCase(),
      is_heading: /^h[1-6]$/i.test(el.tagName),
      font_size: parseFloat(style.fontSize) || 0
    });
  }
  return out;
})()`

const formFieldsScript = `
(() => {
  const out = [];
  const nodes = document.querySelectorAll('form input,form textarea,form select');
  for (let i = 0; i < nodes.length && out.length < 50; i++) {
    const el = nodes[i];
    if (el.type === 'hidden') continue;
    out.push({
      name: el.name || el.id || '',
      field_type: el.type || el.tagName.toLowerCase(),
      required: el.required === true,
      placeholder: el.placeholder || ''
    });
  }
  return out;
})()`

const layoutScript = `
(() => ({
  viewport_width: window.innerWidth,
  viewport_height: window.innerHeight,
  content_width: document.documentElement.scrollWidth,
  content_height: document.documentElement.scrollHeight
}))()`

const semanticStructureScript = `
(() => {
  const headings = [];
  document.querySelectorAll('h1,h2,h3').forEach(h => {
    const t = h.innerText.trim();
    if (t && headings.length < 20) headings.push(t.slice(0, 120));
  });
  const main = document.querySelector('main,[role=main],article');
  const navigation = [];
  document.querySelectorAll('nav a').forEach(a => {
    const t = a.innerText.trim();
    if (t && navigation.length < 20) navigation.push(t.slice(0, 60));
  });
  return {
    headings: headings,
    main_content: main ? main.innerText.trim().slice(0, 500) : '',
    navigation: navigation
  };
})()`

const accessibilityScript = `
(() => {
  const ariaLabels = [];
  document.querySelectorAll('[aria-label]').forEach(el => {
    if (ariaLabels.length < 30) ariaLabels.push(el.getAttribute('aria-label'));
  });
  const altTexts = [];
  const violations = [];
  document.querySelectorAll('img').forEach(img => {
    if (img.alt) { if (altTexts.length < 30) altTexts.push(img.alt); }
    else violations.push('img without alt text');
  });
  document.querySelectorAll('input:not([type=hidden]):not([type=submit])').forEach(input => {
    const id = input.id;
    const labelled = (id && document.querySelector('label[for="' + id + '"]')) ||
      input.getAttribute('aria-label') || input.closest('label');
    if (!labelled) violations.push('input without label: ' + (input.name || input.type));
  });
  return {
    aria_labels: ariaLabels,
    alt_texts: altTexts,
    accessibility_violations: violations.slice(0, 30)
  };
})()`

const computedStylesScript = `
(() => {
  const out = {};
  const nodes = document.querySelectorAll('header,nav,main,footer,form,button');
  let n = 0;
  for (const el of nodes) {
    if (n >= 20) break;
    const style = window.getComputedStyle(el);
    let key = el.tagName.toLowerCase();
    if (el.id) key = '#' + el.id;
    if (out[key]) continue;
    out[key] = {
      display: style.display,
      visibility: style.visibility,
      z_index: style.zIndex
    };
    n++;
  }
  return out;
})()`

const performanceScript = `
(() => {
  const t = performance.timing;
  const load = t.loadEventEnd > 0 ? t.loadEventEnd - t.navigationStart : 0;
  const domReady = t.domContentLoadedEventEnd > 0 ? t.domContentLoadedEventEnd - t.navigationStart : 0;
  return {
    load_time: load,
    dom_ready_time: domReady,
    resource_count: performance.getEntriesByType('resource').length
  };
})()`

const domAnalysisScript = `
(() => {
  let nodeCount = 0;
  let maxDepth = 0;
  let interactiveNodes = 0;
  const interactiveTags = ['a', 'button', 'input', 'select', 'textarea', 'form'];
  const walk = (node, depth) => {
    nodeCount++;
    if (depth > maxDepth) maxDepth = depth;
    if (node.nodeType === 1) {
      const tag = node.tagName.toLowerCase();
      if (interactiveTags.includes(tag) || node.onclick || node.getAttribute('role') === 'button') {
        interactiveNodes++;
      }
    }
    for (const child of node.childNodes) walk(child, depth + 1);
  };
  walk(document.documentElement, 0);
  return { total_nodes: nodeCount, max_depth: maxDepth, interactive_nodes: interactiveNodes };
})()`

const visualAnalysisScript = `
(() => {
  const colors = new Set();
  const visualElements = new Set();
  for (const el of document.querySelectorAll('*')) {
    const style = window.getComputedStyle(el);
    if (style.backgroundColor && style.backgroundColor !== 'rgba(0, 0, 0, 0)') {
      colors.add(style.backgroundColor);
    }
    if (style.color) colors.add(style.color);
    if (el.tagName === 'IMG') visualElements.add('image');
    if (el.tagName === 'VIDEO') visualElements.add('video');
    if (el.tagName === 'CANVAS') visualElements.add('canvas');
    if (el.tagName === 'SVG') visualElements.add('svg');
    if (style.backgroundImage && style.backgroundImage !== 'none') {
      visualElements.add('background-image');
    }
  }
  const content = document.documentElement.innerHTML;
  let hash = 0;
  for (let i = 0; i < Math.min(content.length, 1000); i++) {
    hash = ((hash << 5) - hash) + content.charCodeAt(i);
    hash = hash & hash;
  }
  return {
    screenshot_hash: Math.abs(hash).toString(16),
    color_palette: Array.from(colors).slice(0, 10),
    visual_elements: Array.from(visualElements)
  };
})()`

const behaviorScript = `
(() => {
  const forms = document.querySelectorAll('form').length;
  const links = document.querySelectorAll('a[href]').length;
  const buttons = document.querySelectorAll('button,[role=button]').length;
  const userFlows = [];
  if (forms > 0) userFlows.push('form-submission');
  if (links > 10) userFlows.push('navigation-heavy');
  if (buttons > 5) userFlows.push('interactive-actions');
  const hotspots = [];
  const header = document.querySelector('header,[role=banner],.header,#header');
  if (header && header.querySelectorAll('button,a').length > 0) hotspots.push('header-navigation');
  const main = document.querySelector('main,[role=main],.main,#main');
  if (main && main.querySelectorAll('button,input,a').length > 0) hotspots.push('main-content-interaction');
  if (document.querySelector('footer,[role=contentinfo],.footer,#footer')) hotspots.push('footer-links');
  return { user_flows: userFlows, interaction_hotspots: hotspots };
})()`

const insightsScript = `
(() => {
  const title = document.title.toLowerCase();
  const h1 = document.querySelector('h1');
  const forms = document.querySelectorAll('form').length;
  const links = document.querySelectorAll('a').length;
  const images = document.querySelectorAll('img').length;

  let pagePurpose = 'general-content';
  const recommendations = [];
  if (forms > 0) {
    if (title.includes('login') || title.includes('sign')) {
      pagePurpose = 'authentication';
      recommendations.push('Fill and submit login form');
    } else if (title.includes('search')) {
      pagePurpose = 'search';
      recommendations.push('Enter search query');
    } else {
      pagePurpose = 'data-collection';
      recommendations.push('Complete form fields');
    }
  } else if (links > 20) {
    pagePurpose = 'navigation-hub';
    recommendations.push('Navigate to relevant section');
  } else if (images > 10) {
    pagePurpose = 'media-gallery';
    recommendations.push('Browse visual content');
  } else if (title.includes('article') || title.includes('blog')) {
    pagePurpose = 'article';
    recommendations.push('Read main content');
  }

  let usabilityScore = 0.5;
  if (h1) usabilityScore += 0.1;
  if (document.querySelector('nav')) usabilityScore += 0.1;
  if (forms > 0 && forms < 3) usabilityScore += 0.1;
  if (links > 100) usabilityScore -= 0.1;
  if (forms > 5) usabilityScore -= 0.1;
  usabilityScore = Math.max(0, Math.min(1, usabilityScore));

  if (forms > 0) recommendations.push('Validate form inputs before submission');
  if (links > 50) recommendations.push('Use search or navigation menu for efficiency');

  return {
    page_purpose: pagePurpose,
    recommended_actions: recommendations,
    usability_score: usabilityScore
  };
})()`
