/*
Package domain contains the core workflow model of Sketchy.

It defines the entities of the sketch pipeline (uploaded images, the selection,
the analysis, the regeneration and the improvement chain) and the pure
transition functions that move a State forward. This package is kept free of
I/O: persistence, transport and rendering live behind the ports package.

# Key Entities

  - State: the aggregate root. Only its transition methods can change it.
  - Session: the uploaded image batch plus the current selection.
  - Analysis: the AI-derived description of the selected image.
  - Regeneration: the image generated from an analysis prompt.
  - ImprovementChain: successive refinements of a regeneration; its Tip is the next improvement target.
*/
package domain
