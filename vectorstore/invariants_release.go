//go:build !vecachedebug

package vectorstore

const debugInvariants = false
