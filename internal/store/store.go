package store

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/quiz-labs/quizgen/internal/model"

	_ "modernc.org/sqlite"
)

// Store persists per-student performance aggregates in SQLite.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		student_id TEXT PRIMARY KEY,
		class TEXT NOT NULL,
		total_questions_attempted INTEGER NOT NULL DEFAULT 0,
		total_correct_answers INTEGER NOT NULL DEFAULT 0,
		total_incorrect_answers INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS subject_stats (
		student_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		total_attempts INTEGER NOT NULL DEFAULT 0,
		correct_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (student_id, subject),
		FOREIGN KEY (student_id) REFERENCES students(student_id)
	);

	CREATE TABLE IF NOT EXISTS topic_stats (
		student_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		topic TEXT NOT NULL,
		total_attempts INTEGER NOT NULL DEFAULT 0,
		correct_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (student_id, subject, topic),
		FOREIGN KEY (student_id) REFERENCES students(student_id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetRecord returns the aggregate record for a student, or nil if the student
// has never submitted a quiz. All three tables are read in one transaction so
// a concurrently committing submission is either fully visible or not at all.
func (s *Store) GetRecord(studentID string) (*model.PerformanceRecord, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var rec model.PerformanceRecord
	err = tx.QueryRow(
		`SELECT student_id, class, total_questions_attempted, total_correct_answers, total_incorrect_answers
		 FROM students WHERE student_id = ?`, studentID,
	).Scan(&rec.StudentID, &rec.Class, &rec.TotalQuestionsAttempted, &rec.TotalCorrectAnswers, &rec.TotalIncorrectAnswers)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.Subjects = make(map[string]model.SubjectStats)

	rows, err := tx.Query(
		`SELECT subject, total_attempts, correct_count FROM subject_stats WHERE student_id = ?`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var subject string
		var stats model.SubjectStats
		if err := rows.Scan(&subject, &stats.TotalAttempts, &stats.CorrectCount); err != nil {
			return nil, err
		}
		stats.Topics = make(map[string]model.TopicStats)
		rec.Subjects[subject] = stats
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	topicRows, err := tx.Query(
		`SELECT subject, topic, total_attempts, correct_count FROM topic_stats WHERE student_id = ?`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer topicRows.Close()
	for topicRows.Next() {
		var subject, topic string
		var ts model.TopicStats
		if err := topicRows.Scan(&subject, &topic, &ts.TotalAttempts, &ts.CorrectCount); err != nil {
			return nil, err
		}
		stats, ok := rec.Subjects[subject]
		if !ok {
			stats = model.SubjectStats{Topics: make(map[string]model.TopicStats)}
		}
		stats.Topics[topic] = ts
		rec.Subjects[subject] = stats
	}
	if err := topicRows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit read: %w", err)
	}
	return &rec, nil
}

// GetClass returns the stored class for a student, or empty string if the
// student has no record yet.
func (s *Store) GetClass(studentID string) (string, error) {
	var class string
	err := s.db.QueryRow(`SELECT class FROM students WHERE student_id = ?`, studentID).Scan(&class)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return class, err
}

// ApplyIncrements adds one quiz attempt's aggregates to a student record in a
// single transaction. A missing record is created with the given class; an
// existing record keeps its original class regardless of classIfNew.
func (s *Store) ApplyIncrements(studentID, classIfNew string, inc model.Increments) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO students (student_id, class, total_questions_attempted, total_correct_answers, total_incorrect_answers)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(student_id) DO UPDATE SET
			total_questions_attempted = total_questions_attempted + excluded.total_questions_attempted,
			total_correct_answers = total_correct_answers + excluded.total_correct_answers,
			total_incorrect_answers = total_incorrect_answers + excluded.total_incorrect_answers`,
		studentID, classIfNew, inc.Attempted, inc.Correct, inc.Incorrect,
	)
	if err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}

	// Deterministic statement order keeps concurrent submissions from
	// deadlocking on row locks.
	subjects := make([]string, 0, len(inc.Subjects))
	for subject := range inc.Subjects {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)

	for _, subject := range subjects {
		stats := inc.Subjects[subject]
		_, err = tx.Exec(
			`INSERT INTO subject_stats (student_id, subject, total_attempts, correct_count)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(student_id, subject) DO UPDATE SET
				total_attempts = total_attempts + excluded.total_attempts,
				correct_count = correct_count + excluded.correct_count`,
			studentID, subject, stats.TotalAttempts, stats.CorrectCount,
		)
		if err != nil {
			return fmt.Errorf("upsert subject %q: %w", subject, err)
		}

		topics := make([]string, 0, len(stats.Topics))
		for topic := range stats.Topics {
			topics = append(topics, topic)
		}
		sort.Strings(topics)

		for _, topic := range topics {
			ts := stats.Topics[topic]
			_, err = tx.Exec(
				`INSERT INTO topic_stats (student_id, subject, topic, total_attempts, correct_count)
				 VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT(student_id, subject, topic) DO UPDATE SET
					total_attempts = total_attempts + excluded.total_attempts,
					correct_count = correct_count + excluded.correct_count`,
				studentID, subject, topic, ts.TotalAttempts, ts.CorrectCount,
			)
			if err != nil {
				return fmt.Errorf("upsert topic %q/%q: %w", subject, topic, err)
			}
		}
	}

	return tx.Commit()
}

// StudentCount returns the number of students with a record.
func (s *Store) StudentCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM students`).Scan(&count)
	return count, err
}

// ListStudentIDs returns all known student identifiers, sorted.
func (s *Store) ListStudentIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT student_id FROM students ORDER BY student_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
