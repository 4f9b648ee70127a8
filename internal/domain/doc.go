package domain

// Package domain contains the core business concepts for the html2pdf service.
// Keep this package free of transport (HTTP) and infrastructure (Redis/Chrome) concerns.
