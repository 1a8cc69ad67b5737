package rag

// DefaultKnowledge is the built-in syllabus text seeded into the index when
// no external knowledge file is configured.
const DefaultKnowledge = `
Class 1-5 Basic Math: Addition is the process of combining two or more numbers to get a total. Subtraction is taking one number away from another. Multiplication is repeated addition, and division is splitting into equal parts. Fractions represent parts of a whole.

Class 6-8 Science: Photosynthesis is the process by which plants make their food using sunlight, water, and carbon dioxide. The human circulatory system includes the heart and blood vessels that transport oxygen and nutrients.

Class 9-12 Physics: Newton's Laws of Motion describe how forces affect an object's movement. The first law states an object at rest stays at rest unless acted upon by a force.

Bachelors: Advanced mathematics includes subjects like linear algebra, calculus, and differential equations. Computer science covers algorithms, data structures, programming paradigms, and software development principles.

Masters: Topics include advanced algorithms, machine learning, artificial intelligence, distributed computing, and data science.
`
