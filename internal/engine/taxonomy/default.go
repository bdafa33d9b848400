package taxonomy

// UnknownUnsafe is the default unknown-unsafe bucket key.
const UnknownUnsafe = "unknown_unsafe"

// Safe is the key of the default severity-zero category.
const Safe = "safe"

// DefaultCategories returns the built-in unified category set.
func DefaultCategories() map[string]Category {
	return map[string]Category{
		"safe": {
			Code:        "SAFE",
			Description: "Content is safe and does not violate any policies",
			Severity:    0,
		},
		"unknown_unsafe": {
			Code:        "UNKNOWN_UNSAFE",
			Description: "Unsafe content of unknown or mixed type",
			Severity:    1,
		},
		"harmful_prompt": {
			Code:        "HARMFUL",
			Description: "Harmful or malicious prompt",
			Severity:    2,
		},
		"prompt_injection": {
			Code:        "PROMPT_INJECTION",
			Description: "Prompt injection attempt detected",
			Severity:    2,
		},
		"jailbreak": {
			Code:        "JAILBREAK",
			Description: "Jailbreak attempt detected",
			Severity:    3,
		},
	}
}

// DefaultMapping returns the built-in raw-to-unified mapping for a
// classifier kind, or nil when the kind has no default.
func DefaultMapping(kind string) map[string]string {
	switch kind {
	case "llama_guard":
		return llamaGuardMapping()
	case "guardian":
		return guardianMapping()
	case "judge":
		return judgeMapping()
	default:
		return nil
	}
}

// llamaGuardMapping covers the LlamaGuard S1-S14 hazard codes.
func llamaGuardMapping() map[string]string {
	m := map[string]string{
		"safe":   "safe",
		"s1":     "harmful_prompt", // Violent Crimes
		"s2":     "harmful_prompt", // Non-Violent Crimes
		"s3":     "harmful_prompt", // Sex-Related Crimes
		"s4":     "harmful_prompt", // Child Sexual Exploitation
		"s5":     "harmful_prompt", // Defamation
		"s6":     "harmful_prompt", // Specialized Advice
		"s7":     "harmful_prompt", // Privacy
		"s8":     "harmful_prompt", // Intellectual Property
		"s9":     "harmful_prompt", // Indiscriminate Weapons
		"s10":    "harmful_prompt", // Hate
		"s11":    "harmful_prompt", // Suicide & Self-Harm
		"s12":    "harmful_prompt", // Sexual Content
		"s13":    "jailbreak",      // Elections
		"s14":    "jailbreak",      // Code Interpreter Abuse
		"unsafe": "unknown_unsafe",
	}
	return m
}

// guardianMapping covers binary safe/unsafe guardian models.
func guardianMapping() map[string]string {
	return map[string]string{
		"safe":   "safe",
		"unsafe": "unknown_unsafe",
	}
}

// judgeMapping covers the vocabulary the judge prompt asks for.
func judgeMapping() map[string]string {
	return map[string]string{
		"safe":             "safe",
		"harmful":          "harmful_prompt",
		"harmful_prompt":   "harmful_prompt",
		"prompt_injection": "prompt_injection",
		"injection":        "prompt_injection",
		"jailbreak":        "jailbreak",
	}
}
