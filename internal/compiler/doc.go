// Package compiler turns declarative form definitions into engine
// registrations.
//
// Definitions are written in YAML or CUE:
//
//	name: signup
//	debounce: 300ms
//	fields:
//	  username:
//	    default: ""
//	    schema: 'string & =~"^[a-z0-9_]+$"'
//	    rules:
//	      - name: required
//	      - name: min_length
//	        value: 3
//	    async:
//	      not_in: [admin, root]
//	    directive: auto
//	  confirm:
//	    default: ""
//	    rules:
//	      - name: equals_field
//	        field: password
//	    watch:
//	      fields:
//	        password: [change]
//
// Compile checks every reference (watched fields, rule targets, events,
// durations, schemas) and produces a Form that creates and registers a
// store. AnalyzeCycles reports watch cycles as warnings.
package compiler
