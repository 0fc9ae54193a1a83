package project

import (
	"strconv"
	"strings"
)

// ----------------------------
// ----- Functions -----------
// ----------------------------

// demangleLegacy implements the legacy Rust mangling scheme closely enough
// to resolve hook/entry-function names: "_ZN4core9panicking5panic17h<16 hex>E"
// becomes "core::panicking::panic::h<16 hex>" and, with the hash stripped,
// "core::panicking::panic". Unrecognized input is returned unchanged, same
// fallback rustc_demangle itself uses for non-Rust symbols.
func demangleLegacy(name string) string {
	s := name
	if strings.HasPrefix(s, "_ZN") {
		s = s[3:]
	} else if strings.HasPrefix(s, "ZN") {
		s = s[2:]
	} else {
		return name
	}
	s = strings.TrimSuffix(s, "E")

	var parts []string
	for len(s) > 0 {
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 0 {
			return name
		}
		n, err := strconv.Atoi(s[:i])
		if err != nil || i+n > len(s) {
			return name
		}
		parts = append(parts, s[i:i+n])
		s = s[i+n:]
	}
	if len(parts) == 0 {
		return name
	}
	return strings.Join(parts, "::")
}

// demangleNoHash strips a trailing "::h<16 hex digits>" component produced
// by the legacy mangler's per-instantiation disambiguator, matching
// rustc_demangle's "{:#}" alternate Display form.
func demangleNoHash(demangled string) string {
	idx := strings.LastIndex(demangled, "::h")
	if idx < 0 {
		return demangled
	}
	hash := demangled[idx+3:]
	if len(hash) != 16 {
		return demangled
	}
	for _, r := range hash {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return demangled
		}
	}
	return demangled[:idx]
}

// Demangle returns the most readable form of a mangled symbol name: fully
// demangled with the per-instantiation disambiguator hash stripped, for
// use anywhere a name is rendered to a person (stack traces, logs) rather
// than matched against bitcode.
func Demangle(name string) string {
	return demangleNoHash(demangleLegacy(name))
}

// nameForms returns the exact name, its demangled form, and its demangled
// form with the trailing disambiguator hash removed -- the three forms
// spec.md requires every lookup (entry function, call target, hook) to try
// in that order.
func nameForms(name string) [3]string {
	demangled := demangleLegacy(name)
	return [3]string{name, demangled, demangleNoHash(demangled)}
}
