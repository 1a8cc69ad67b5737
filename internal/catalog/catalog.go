// Package catalog holds the static class and language lists offered during
// quiz configuration.
package catalog

import "sort"

// classSubjects maps each class/stream to the subjects it offers.
var classSubjects = map[string][]string{
	"Class 3":             {"Math", "EVS", "English", "Hindi", "Marathi", "Tamil", "Telugu", "Punjabi"},
	"Class 4":             {"Math", "EVS", "English", "Hindi", "Bengali", "Kannada", "Urdu", "Gujarati"},
	"Class 5":             {"Math", "EVS", "English", "Hindi", "Sanskrit", "Tamil", "Telugu", "Odia"},
	"Class 6":             {"Math", "Science", "English", "Social Science", "Hindi", "Sanskrit", "Urdu", "Tamil", "Marathi"},
	"Class 7":             {"Math", "Science", "English", "Social Science", "Hindi", "Sanskrit", "Bengali", "Telugu"},
	"Class 8":             {"Math", "Science", "English", "Social Science", "Hindi", "Punjabi", "Kannada", "Malayalam"},
	"Class 9":             {"Math", "Science", "English", "Social Science", "Hindi", "Sanskrit", "Computer Applications", "Tamil"},
	"Class 10":            {"Math", "Science", "English", "Social Science", "Hindi", "Sanskrit", "IT", "Marathi", "Bengali"},
	"Class 11 (Science)":  {"Physics", "Chemistry", "Math", "Biology", "English", "Computer Science", "PE", "Environmental Science"},
	"Class 11 (Commerce)": {"Accountancy", "Business Studies", "Economics", "Math", "English", "IT", "Entrepreneurship"},
	"Class 11 (Arts)":     {"History", "Geography", "Political Science", "Economics", "Sociology", "Psychology", "English", "Hindi"},
	"Class 12 (Science)":  {"Physics", "Chemistry", "Math", "Biology", "English", "Computer Science", "PE"},
	"Class 12 (Commerce)": {"Accountancy", "Business Studies", "Economics", "Math", "English", "Entrepreneurship"},
	"Class 12 (Arts)":     {"History", "Geography", "Political Science", "Sociology", "Economics", "Psychology", "Hindi", "English"},
}

// languages the quiz can be generated and reported in.
var languages = []string{
	"English", "Hindi", "Bengali", "Marathi", "Telugu", "Tamil", "Gujarati",
	"Urdu", "Kannada", "Odia", "Malayalam", "Punjabi", "Assamese", "Maithili",
	"Kashmiri", "Nepali", "Konkani", "Sindhi", "Sanskrit", "Mandarin Chinese",
	"Spanish", "French", "German", "Russian", "Portuguese", "Japanese",
	"Arabic", "Italian", "Turkish", "Korean", "Vietnamese", "Thai",
	"Indonesian", "Dutch", "Swahili", "Ukrainian", "Persian", "Filipino",
	"Polish", "Greek", "Hebrew", "Hungarian", "Swedish",
}

// Classes returns all class names in sorted order.
func Classes() []string {
	names := make([]string, 0, len(classSubjects))
	for name := range classSubjects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SubjectsFor returns the subjects offered by a class, or nil for an unknown
// class.
func SubjectsFor(class string) []string {
	subjects, ok := classSubjects[class]
	if !ok {
		return nil
	}
	out := make([]string, len(subjects))
	copy(out, subjects)
	return out
}

// ValidClass reports whether the class name exists in the catalog.
func ValidClass(class string) bool {
	_, ok := classSubjects[class]
	return ok
}

// HasSubject reports whether the class offers the subject.
func HasSubject(class, subject string) bool {
	for _, s := range classSubjects[class] {
		if s == subject {
			return true
		}
	}
	return false
}

// Languages returns the selectable quiz languages.
func Languages() []string {
	out := make([]string, len(languages))
	copy(out, languages)
	return out
}

// ValidLanguage reports whether the language is selectable.
func ValidLanguage(lang string) bool {
	for _, l := range languages {
		if l == lang {
			return true
		}
	}
	return false
}
