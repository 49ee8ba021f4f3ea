// Package server hosts the Fiber HTTP service, request middleware chain, and
// the repository registry that maps page requests onto the mirror engine.
// The app exposes one page route per registered repository plus diagnostic
// surfaces under /-/ (repo inventory, prometheus metrics). Handlers stay thin:
// they resolve the route, delegate to the mirror service, and hand computed
// results to the page renderer. Keep exports narrow and accept explicit
// dependencies so tests can inject fakes.
package server
